package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/database"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"

	"github.com/jackc/pgx/v5"
)

const createSnapshotTable = `
CREATE TABLE IF NOT EXISTS match_snapshots (
	match_id   TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	version    BIGINT NOT NULL DEFAULT 0,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSnapshot = `
INSERT INTO match_snapshots (match_id, status, version, state, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (match_id) DO UPDATE
SET status = EXCLUDED.status, version = EXCLUDED.version, state = EXCLUDED.state, updated_at = now()
WHERE match_snapshots.version <= EXCLUDED.version`

// PgMatchSnapshotRepository postgres 驱动，快照存 jsonb
type PgMatchSnapshotRepository struct {
	pg *database.PostgresManager
}

func NewPgMatchSnapshotRepository(pg *database.PostgresManager) *PgMatchSnapshotRepository {
	return &PgMatchSnapshotRepository{pg: pg}
}

// EnsureSchema 启动时建表
func (r *PgMatchSnapshotRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pg.Pool.Exec(ctx, createSnapshotTable)
	return err
}

func (r *PgMatchSnapshotRepository) Save(ctx context.Context, snap *entity.MatchSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.MatchID, err)
	}
	tag, err := r.pg.Pool.Exec(ctx, upsertSnapshot, snap.MatchID, snap.Status, snap.Version, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleSnapshot
	}
	return nil
}

func (r *PgMatchSnapshotRepository) Load(ctx context.Context, matchID string) (*entity.MatchSnapshot, error) {
	var raw []byte
	err := r.pg.Pool.QueryRow(ctx, `SELECT state FROM match_snapshots WHERE match_id = $1`, matchID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, err
	}
	var snap entity.MatchSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

func (r *PgMatchSnapshotRepository) Delete(ctx context.Context, matchID string) error {
	_, err := r.pg.Pool.Exec(ctx, `DELETE FROM match_snapshots WHERE match_id = $1`, matchID)
	return err
}

func (r *PgMatchSnapshotRepository) ListUnfinished(ctx context.Context) ([]string, error) {
	rows, err := r.pg.Pool.Query(ctx,
		`SELECT match_id FROM match_snapshots WHERE status <> $1 ORDER BY updated_at`, entity.MatchStatusFinished)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
