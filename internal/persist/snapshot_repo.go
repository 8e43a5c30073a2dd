package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SnapshotInfo is the header row of a stored snapshot.
type SnapshotInfo struct {
	ID          uuid.UUID
	Tick        ecs.Tick
	Time        time.Duration
	EntityCount int
	TakenAt     time.Time
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes a snapshot in one transaction.
func (r *SnapshotRepo) Save(ctx context.Context, s *Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, tick, sim_time_ns, entity_count, digest, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, int32(s.Tick), int64(s.Time), len(s.Entities), s.Digest[:], s.TakenAt,
	); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	entities := make([][]any, len(s.Entities))
	for i, e := range s.Entities {
		entities[i] = []any{s.ID, i, e.Index, e.Generation}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"snapshot_entities"},
		[]string{"snapshot_id", "ordinal", "idx", "generation"},
		pgx.CopyFromRows(entities),
	); err != nil {
		return fmt.Errorf("snapshot entities: %w", err)
	}

	components := make([][]any, len(s.Components))
	for i, c := range s.Components {
		components[i] = []any{s.ID, i, c.Entity, c.Type, string(c.Data)}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"snapshot_components"},
		[]string{"snapshot_id", "seq", "ordinal", "type", "data"},
		pgx.CopyFromRows(components),
	); err != nil {
		return fmt.Errorf("snapshot components: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}
	r.db.log.Info("snapshot saved",
		zap.Stringer("id", s.ID),
		zap.Int32("tick", int32(s.Tick)),
		zap.Int("entities", len(s.Entities)),
		zap.Int("components", len(s.Components)),
	)
	return nil
}

// List returns snapshot headers, newest first.
func (r *SnapshotRepo) List(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, tick, sim_time_ns, entity_count, taken_at
		 FROM snapshots ORDER BY taken_at DESC, tick DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SnapshotInfo
	for rows.Next() {
		var (
			info SnapshotInfo
			tick int32
			ns   int64
		)
		if err := rows.Scan(&info.ID, &tick, &ns, &info.EntityCount, &info.TakenAt); err != nil {
			return nil, err
		}
		info.Tick = ecs.Tick(tick)
		info.Time = time.Duration(ns)
		result = append(result, info)
	}
	return result, rows.Err()
}

// Latest loads the newest snapshot. Returns nil, nil when none is stored.
func (r *SnapshotRepo) Latest(ctx context.Context) (*Snapshot, error) {
	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id FROM snapshots ORDER BY taken_at DESC, tick DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, id)
}

// Load reads one snapshot and verifies its digest. Returns nil, nil when the
// id is unknown.
func (r *SnapshotRepo) Load(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	s := &Snapshot{ID: id}
	var (
		tick   int32
		ns     int64
		count  int
		digest []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT tick, sim_time_ns, entity_count, digest, taken_at FROM snapshots WHERE id = $1`, id,
	).Scan(&tick, &ns, &count, &digest, &s.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Tick = ecs.Tick(tick)
	s.Time = time.Duration(ns)
	copy(s.Digest[:], digest)

	rows, err := r.db.Pool.Query(ctx,
		`SELECT idx, generation FROM snapshot_entities WHERE snapshot_id = $1 ORDER BY ordinal`, id,
	)
	if err != nil {
		return nil, err
	}
	s.Entities = make([]ecs.Entity, 0, count)
	for rows.Next() {
		var e ecs.Entity
		if err := rows.Scan(&e.Index, &e.Generation); err != nil {
			rows.Close()
			return nil, err
		}
		s.Entities = append(s.Entities, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Pool.Query(ctx,
		`SELECT ordinal, type, data::text FROM snapshot_components
		 WHERE snapshot_id = $1 ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c    ComponentRow
			data string
		)
		if err := rows.Scan(&c.Entity, &c.Type, &data); err != nil {
			return nil, err
		}
		c.Data = []byte(data)
		s.Components = append(s.Components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// Prune deletes all but the newest keep snapshots.
func (r *SnapshotRepo) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, tick DESC LIMIT $1
		)`, keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
