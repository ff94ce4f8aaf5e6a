package db

import "time"

// User represents an application user (the webhook owner).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Account stores one exchange credential pair. APIKey and APISecret are
// ciphertext (pkg/crypto); plaintext never touches this struct.
type Account struct {
	ID        string
	UserID    string
	Name      string
	APIKey    string
	APISecret string
	Testnet   bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Strategy binds a direction filter to one or more credentialed accounts.
type Strategy struct {
	ID        string
	UserID    string
	Name      string
	Direction string // long, short or both
	Enabled   bool
	Links     []AccountLink
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountLink associates a strategy with an account and its risk budget.
type AccountLink struct {
	StrategyID string
	AccountID  string
	Enabled    bool
	RiskBudget float64
}

// AuditRecord is one immutable row per processed signal.
type AuditRecord struct {
	ID         string
	UserID     string
	StrategyID string // empty when the signal never resolved
	Symbol     string
	Action     string
	Status     string
	Message    string
	Payload    string // original signal JSON, for replay/debugging
	Results    string // per-account results JSON
	CreatedAt  time.Time
}
