package events

// Kafka topics. The contribution topics are owned by the upstream
// contribution source; the rest are published by this service.
const (
	TopicContributionCompleted = "contribution.completed"
	TopicContributionRefunded  = "contribution.refunded"

	TopicLedgerEntriesCreated = "ledger.entries_created"
	TopicTransferFailed       = "transfer.failed"
	TopicAwaitingOnboarding   = "transfer.awaiting_onboarding"
	TopicContributionFlagged  = "contribution.flagged"
)
