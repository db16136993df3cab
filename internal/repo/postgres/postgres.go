package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/repo"
)

//go:embed migrations.sql
var migrations string

var _ repo.StateStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("postgres_state_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sourceID string) (*domain.SourceState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM source_state WHERE source_id = $1`, sourceID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	var st domain.SourceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", sourceID, err)
	}
	return &st, nil
}

func (s *Store) Put(ctx context.Context, sourceID string, st domain.SourceState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO source_state (source_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		sourceID, b,
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}
