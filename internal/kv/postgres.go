package kv

import (
	"context"
	"errors"
	"fmt"

	"kicks/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Postgres struct {
	db dbx.Querier
}

func NewPostgres(q dbx.Querier) *Postgres {
	return &Postgres{db: q}
}

func (p *Postgres) Get(ctx context.Context, scope, key string) (string, error) {
	var v string
	err := p.db.QueryRow(ctx, `
SELECT value
FROM local_storage
WHERE scope = $1 AND key = $2
`, scope, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Set(ctx context.Context, scope, key, value string) error {
	_, err := p.db.Exec(ctx, `
INSERT INTO local_storage (scope, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (scope, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, scope, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, scope, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM local_storage WHERE scope = $1 AND key = $2`, scope, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
