package model

import "time"

// User is a registered sender. Messages from identities without a user row
// are rejected before any extraction budget is spent.
type User struct {
	CreatedAt time.Time
	ID        string
	Identity  string // gateway identity, e.g. a phone number
	Name      string
	Cohort    string
}
