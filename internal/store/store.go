// Package store implements the persistence collaborator over PostgreSQL.
// Entities are stored as a JSONB document plus a handful of indexed columns
// used by the periodic evaluator's due-entity query. Writes are guarded by an
// optimistic version column so concurrent schedulers produce at most one
// winning update per tick.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/lifecycle"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.EntityStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Load retrieves one entity snapshot by ID.
func (s *Store) Load(ctx context.Context, id string) (*schemas.Entity, error) {
	var doc []byte
	var version int64

	err := s.pool.QueryRow(ctx, `
		SELECT doc, version FROM entities WHERE id = $1;
	`, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entity %q not found", id)
		}
		return nil, fmt.Errorf("failed to load entity %q: %w", id, err)
	}

	var entity schemas.Entity
	if err := json.Unmarshal(doc, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity %q: %w", id, err)
	}
	// The column is authoritative; the document copy may lag one write.
	entity.Version = version
	return &entity, nil
}

// Save persists the entity if the stored version still equals
// expectedVersion. A zero expectedVersion inserts a new row at version 1;
// otherwise the write is a conditional update that loses cleanly with a
// VersionConflictError when another writer got there first.
func (s *Store) Save(ctx context.Context, entity *schemas.Entity, expectedVersion int64) error {
	next := *entity
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal entity %q: %w", entity.ID, err)
	}

	dueAt := slaDueAt(&next)
	nextRunAt := nextRunAt(&next)

	if expectedVersion == 0 {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO entities (id, class, severity, state, version, doc, sla_due_at, next_run_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
		`, next.ID, string(next.Class), string(next.Severity), string(next.Lifecycle.CurrentState),
			next.Version, doc, dueAt, nextRunAt, next.CreatedAt.UTC(), next.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return &schemas.VersionConflictError{EntityID: next.ID, ExpectedVersion: expectedVersion}
			}
			return fmt.Errorf("failed to insert entity %q: %w", next.ID, err)
		}
	} else {
		tag, err := s.pool.Exec(ctx, `
			UPDATE entities
			SET class = $2, severity = $3, state = $4, version = $5, doc = $6,
			    sla_due_at = $7, next_run_at = $8, updated_at = $9
			WHERE id = $1 AND version = $10;
		`, next.ID, string(next.Class), string(next.Severity), string(next.Lifecycle.CurrentState),
			next.Version, doc, dueAt, nextRunAt, next.UpdatedAt, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to update entity %q: %w", next.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return &schemas.VersionConflictError{EntityID: next.ID, ExpectedVersion: expectedVersion}
		}
	}

	entity.Version = next.Version
	entity.UpdatedAt = next.UpdatedAt
	return nil
}

// ListDue returns up to limit entities whose SLA due date or next scheduled
// run is at or before now. The trigger columns are recomputed on every write,
// so breached and terminal entities drop out of this query instead of
// occupying the head of each batch forever.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*schemas.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc, version FROM entities
		WHERE (sla_due_at IS NOT NULL AND sla_due_at <= $1)
		   OR (next_run_at IS NOT NULL AND next_run_at <= $1)
		ORDER BY updated_at ASC
		LIMIT $2;
	`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due entities: %w", err)
	}
	defer rows.Close()

	var entities []*schemas.Entity
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan due entity: %w", err)
		}
		var entity schemas.Entity
		if err := json.Unmarshal(doc, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal due entity: %w", err)
		}
		entity.Version = version
		entities = append(entities, &entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due entities: %w", err)
	}

	s.log.Debug("Listed due entities", zap.Int("count", len(entities)))
	return entities, nil
}

// ListAll returns up to limit entity snapshots in ID order. limit <= 0 reads
// the whole table; reporting runs off these snapshots.
func (s *Store) ListAll(ctx context.Context, limit int) ([]*schemas.Entity, error) {
	query := `SELECT doc, version FROM entities ORDER BY id;`
	args := []any{}
	if limit > 0 {
		query = `SELECT doc, version FROM entities ORDER BY id LIMIT $1;`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*schemas.Entity
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		var entity schemas.Entity
		if err := json.Unmarshal(doc, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		entity.Version = version
		entities = append(entities, &entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}
	return entities, nil
}

// slaDueAt extracts the evaluator trigger timestamp for SLA tracking. A
// breached entity no longer needs re-triggering for the same deadline, and a
// terminal entity is exempt from SLA evaluation entirely.
func slaDueAt(e *schemas.Entity) *time.Time {
	if e.Sla == nil || e.Sla.Breached {
		return nil
	}
	if lifecycle.TableFor(e.Class).IsTerminal(e.Lifecycle.CurrentState) {
		return nil
	}
	due := e.Sla.DueDate.UTC()
	return &due
}

func nextRunAt(e *schemas.Entity) *time.Time {
	if e.ScheduleState == nil || e.ScheduleState.NextRun == nil {
		return nil
	}
	next := e.ScheduleState.NextRun.UTC()
	return &next
}
