// Package account resolves decrypted exchange credentials on demand.
package account

import (
	"context"
	"errors"
	"fmt"

	"signal-bridge/pkg/db"
)

// ErrNotFound reports a missing or inactive credential. The message is part
// of the per-account result contract.
var ErrNotFound = errors.New("API key not found")

// Decrypter opens credential ciphertext; implemented by crypto.KeyManager.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Credentials is a decrypted credential pair. It must live only for the
// request that asked for it: never store it, never log it, never hand it to
// the audit recorder.
type Credentials struct {
	AccountID string
	Name      string
	Key       string
	Secret    string
	Testnet   bool
}

// Resolver decrypts stored account credentials at call time.
type Resolver struct {
	queries *db.Queries
	keys    Decrypter
}

func NewResolver(queries *db.Queries, keys Decrypter) *Resolver {
	return &Resolver{queries: queries, keys: keys}
}

// Resolve loads the account owned by ownerID and decrypts its key pair.
func (r *Resolver) Resolve(ctx context.Context, ownerID, accountID string) (*Credentials, error) {
	acct, err := r.queries.GetAccountByID(ctx, ownerID, accountID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !acct.IsActive {
		return nil, ErrNotFound
	}

	key, err := r.keys.Decrypt(acct.APIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}
	secret, err := r.keys.Decrypt(acct.APISecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt api secret: %w", err)
	}

	return &Credentials{
		AccountID: acct.ID,
		Name:      acct.Name,
		Key:       key,
		Secret:    secret,
		Testnet:   acct.Testnet,
	}, nil
}
