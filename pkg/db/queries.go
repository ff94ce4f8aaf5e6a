// Package db provides owner-isolated queries over the document store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrUserIDRequired = errors.New("user_id is required for data isolation")
	ErrNotFound       = errors.New("record not found")
)

// Queries provides owner-isolated database access.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a new Queries instance.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ----------------------------------------
// User queries
// ----------------------------------------

// CreateUser inserts a new user row.
func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES (?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// UserExists reports whether the given owner ID exists.
func (q *Queries) UserExists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserIDRequired
	}
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user existence: %w", err)
	}
	return true, nil
}

// ----------------------------------------
// Account (credential) queries
// ----------------------------------------

// CreateAccount inserts a credentialed account. Key and secret must already
// be ciphertext.
func (q *Queries) CreateAccount(ctx context.Context, a Account) error {
	if a.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, api_key, api_secret, testnet, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, a.ID, a.UserID, a.Name, a.APIKey, a.APISecret, a.Testnet)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccountByID returns one account owned by userID.
func (q *Queries) GetAccountByID(ctx context.Context, userID, accountID string) (*Account, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	var a Account
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, api_key, api_secret, testnet, is_active, created_at, updated_at
		FROM accounts
		WHERE id = ? AND user_id = ?
	`, accountID, userID).Scan(&a.ID, &a.UserID, &a.Name, &a.APIKey, &a.APISecret,
		&a.Testnet, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &a, nil
}

// ListAccountsByUser returns all accounts for a specific user.
func (q *Queries) ListAccountsByUser(ctx context.Context, userID string) ([]Account, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, name, api_key, api_secret, testnet, is_active, created_at, updated_at
		FROM accounts
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.APIKey, &a.APISecret,
			&a.Testnet, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeactivateAccount soft-deletes an account owned by userID.
func (q *Queries) DeactivateAccount(ctx context.Context, userID, accountID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, accountID, userID)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----------------------------------------
// Strategy queries
// ----------------------------------------

// CreateStrategy inserts a strategy and its account links in one transaction.
func (q *Queries) CreateStrategy(ctx context.Context, s Strategy) error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, name, direction, enabled)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Name, s.Direction, s.Enabled); err != nil {
		return fmt.Errorf("insert strategy: %w", err)
	}
	for _, l := range s.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategy_accounts (strategy_id, account_id, enabled, risk_budget)
			VALUES (?, ?, ?, ?)
		`, s.ID, l.AccountID, l.Enabled, l.RiskBudget); err != nil {
			return fmt.Errorf("insert account link: %w", err)
		}
	}
	return tx.Commit()
}

// ListStrategiesByOwner returns all strategies (with account links) for one owner.
func (q *Queries) ListStrategiesByOwner(ctx context.Context, userID string) ([]Strategy, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, name, direction, enabled, created_at, updated_at
		FROM strategies
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var strategies []Strategy
	for rows.Next() {
		var s Strategy
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Direction, &s.Enabled,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range strategies {
		links, err := q.linksForStrategy(ctx, strategies[i].ID)
		if err != nil {
			return nil, err
		}
		strategies[i].Links = links
	}
	return strategies, nil
}

func (q *Queries) linksForStrategy(ctx context.Context, strategyID string) ([]AccountLink, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT strategy_id, account_id, enabled, risk_budget
		FROM strategy_accounts
		WHERE strategy_id = ?
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query account links: %w", err)
	}
	defer rows.Close()

	var links []AccountLink
	for rows.Next() {
		var l AccountLink
		if err := rows.Scan(&l.StrategyID, &l.AccountID, &l.Enabled, &l.RiskBudget); err != nil {
			return nil, fmt.Errorf("scan account link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// UpdateStrategy changes enabled/direction on a strategy owned by userID.
func (q *Queries) UpdateStrategy(ctx context.Context, userID, strategyID string, enabled bool, direction string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE strategies SET enabled = ?, direction = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, enabled, direction, strategyID, userID)
	if err != nil {
		return fmt.Errorf("update strategy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertStrategySeed inserts or updates a strategy by (owner, name), replacing
// its account links. Used by the YAML seed import path.
func (q *Queries) UpsertStrategySeed(ctx context.Context, s Strategy) error {
	if s.UserID == "" {
		return ErrUserIDRequired
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, name, direction, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			direction = excluded.direction,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, s.ID, s.UserID, s.Name, s.Direction, s.Enabled); err != nil {
		return fmt.Errorf("upsert strategy: %w", err)
	}

	var id string
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM strategies WHERE user_id = ? AND name = ?
	`, s.UserID, s.Name).Scan(&id); err != nil {
		return fmt.Errorf("resolve strategy id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM strategy_accounts WHERE strategy_id = ?`, id); err != nil {
		return fmt.Errorf("clear account links: %w", err)
	}
	for _, l := range s.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategy_accounts (strategy_id, account_id, enabled, risk_budget)
			VALUES (?, ?, ?, ?)
		`, id, l.AccountID, l.Enabled, l.RiskBudget); err != nil {
			return fmt.Errorf("insert account link: %w", err)
		}
	}
	return tx.Commit()
}

// ----------------------------------------
// Audit queries
// ----------------------------------------

// InsertAudit appends one immutable audit row. There is no update path.
func (q *Queries) InsertAudit(ctx context.Context, r AuditRecord) error {
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO signal_audits (id, user_id, strategy_id, symbol, action, status, message, payload, results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.StrategyID, r.Symbol, r.Action, r.Status, r.Message, r.Payload, r.Results)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAuditsByUser returns the most recent audit rows for one owner.
func (q *Queries) ListAuditsByUser(ctx context.Context, userID string, limit int) ([]AuditRecord, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(strategy_id, ''), COALESCE(symbol, ''),
		       COALESCE(action, ''), status, COALESCE(message, ''),
		       COALESCE(payload, ''), COALESCE(results, ''), created_at
		FROM signal_audits
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.StrategyID, &r.Symbol, &r.Action,
			&r.Status, &r.Message, &r.Payload, &r.Results, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
