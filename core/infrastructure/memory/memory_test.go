package memory

import (
	"context"
	"testing"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSnapshotRepository_SaveLoad(t *testing.T) {
	repo := NewMatchSnapshotRepository()
	ctx := context.Background()

	_, err := repo.Load(ctx, "m-1")
	require.ErrorIs(t, err, repository.ErrSnapshotNotFound)

	snap := &entity.MatchSnapshot{MatchID: "m-1", Status: entity.MatchStatusActive, TurnNumber: 4, Version: 2}
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Load(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.TurnNumber)
	assert.NotSame(t, snap, loaded)

	// 旧版本不能覆盖新版本
	err = repo.Save(ctx, &entity.MatchSnapshot{MatchID: "m-1", Status: entity.MatchStatusActive, Version: 1})
	assert.ErrorIs(t, err, repository.ErrStaleSnapshot)
	assert.Equal(t, 1, repo.Saves())
}

func TestMatchSnapshotRepository_Corrupt(t *testing.T) {
	repo := NewMatchSnapshotRepository()
	repo.PutRaw("m-bad", entity.MatchStatusActive, []byte("{broken"))

	_, err := repo.Load(context.Background(), "m-bad")
	assert.ErrorIs(t, err, repository.ErrSnapshotCorrupt)
}

func TestMatchSnapshotRepository_ListUnfinished(t *testing.T) {
	repo := NewMatchSnapshotRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &entity.MatchSnapshot{MatchID: "b", Status: entity.MatchStatusActive}))
	require.NoError(t, repo.Save(ctx, &entity.MatchSnapshot{MatchID: "a", Status: entity.MatchStatusWaiting}))
	require.NoError(t, repo.Save(ctx, &entity.MatchSnapshot{MatchID: "c", Status: entity.MatchStatusFinished}))

	ids, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, repo.Delete(ctx, "a"))
	ids, _ = repo.ListUnfinished(ctx)
	assert.Equal(t, []string{"b"}, ids)
}

func TestLivenessRepository(t *testing.T) {
	repo := NewLivenessRepository()
	ctx := context.Background()
	require.NoError(t, repo.RecordLiveness(ctx, "u1", "m1", "c1", time.Minute))

	rec, ok := repo.Get("u1", "m1")
	require.True(t, ok)
	assert.Equal(t, "c1", rec.ConnID)

	require.NoError(t, repo.ClearLiveness(ctx, "u1", "m1"))
	_, ok = repo.Get("u1", "m1")
	assert.False(t, ok)

	require.NoError(t, repo.RecordLiveness(ctx, "u2", "m1", "c2", -time.Second))
	_, ok = repo.Get("u2", "m1")
	assert.False(t, ok)
}
