package models

// AccountStatus is the onboarding state of a charter's connected account
// with the payment-transfer provider.
type AccountStatus string

const (
	AccountOnboarding AccountStatus = "onboarding"
	AccountActive     AccountStatus = "active"
	AccountRestricted AccountStatus = "restricted"
)

// CharterStripeAccount maps a charter to its connected account at the
// transfer provider. Owned by the onboarding collaborator; the transfer
// executor only reads it. Transfers are held (entries stay pending) until
// the account is active.
type CharterStripeAccount struct {
	CharterID         string        `json:"charter_id"`
	ProviderAccountID string        `json:"provider_account_id"`
	Status            AccountStatus `json:"status"`
}
