package models

// Charter is one organizational unit in the rooted charter tree
// (national root, state charters, local charters below them).
// The tree is owned by an upstream admin system; this service only reads it.
type Charter struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"` // empty for the national root
	IsActive bool   `json:"is_active"`
}
