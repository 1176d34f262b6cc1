package authfilter

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
)

// PGIdentityStore resolves api keys against the api_keys table, grounded on
// internal/store/pg/teams.go's single-row lookup-by-key shape (a plain
// QueryRowContext + Scan, no ORM). Keys are stored hashed (migration
// 0002_api_keys), so Resolve hashes the presented token before comparing.
type PGIdentityStore struct {
	db *sql.DB
}

func NewPGIdentityStore(db *sql.DB) *PGIdentityStore {
	return &PGIdentityStore{db: db}
}

func hashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func (s *PGIdentityStore) Resolve(ctx context.Context, apiKey string) (Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, source_id FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL`,
		hashAPIKey(apiKey))

	var id Identity
	if err := row.Scan(&id.Source, &id.SourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, errors.New("authfilter: unknown or revoked api key")
		}
		return Identity{}, err
	}
	return id, nil
}
