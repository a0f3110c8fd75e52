package domain

// User represents a registered account. Users are never updated or deleted.
type User struct {
	Username     string
	PasswordHash string
}
