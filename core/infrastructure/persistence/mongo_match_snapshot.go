package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/database"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const matchSnapshotCollection = "match_snapshots"

// snapshotDocument 快照正文按 JSON 字符串保存，只把筛选需要的字段提到外层
type snapshotDocument struct {
	MatchID   string    `bson:"_id"`
	Status    string    `bson:"status"`
	Version   int64     `bson:"version"`
	State     string    `bson:"state"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoMatchSnapshotRepository struct {
	mongo *database.MongoManager
}

func NewMongoMatchSnapshotRepository(mongo *database.MongoManager) repository.MatchSnapshotRepository {
	return &MongoMatchSnapshotRepository{mongo: mongo}
}

func (r *MongoMatchSnapshotRepository) collection() *mongo.Collection {
	return r.mongo.Db.Collection(matchSnapshotCollection)
}

// Save 只有存量版本不高于本次版本时才替换，否则 upsert 撞主键，视为过期写
func (r *MongoMatchSnapshotRepository) Save(ctx context.Context, snap *entity.MatchSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.MatchID, err)
	}
	doc := snapshotDocument{
		MatchID:   snap.MatchID,
		Status:    snap.Status,
		Version:   snap.Version,
		State:     string(raw),
		UpdatedAt: time.Now(),
	}
	filter := bson.M{"_id": snap.MatchID, "version": bson.M{"$lte": snap.Version}}
	_, err = r.collection().ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrStaleSnapshot
		}
		log.Error("保存对局快照失败 %s: %v", snap.MatchID, err)
		return err
	}
	return nil
}

func (r *MongoMatchSnapshotRepository) Load(ctx context.Context, matchID string) (*entity.MatchSnapshot, error) {
	var doc snapshotDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": matchID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, err
	}
	var snap entity.MatchSnapshot
	if err := json.Unmarshal([]byte(doc.State), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

func (r *MongoMatchSnapshotRepository) Delete(ctx context.Context, matchID string) error {
	_, err := r.collection().DeleteOne(ctx, bson.M{"_id": matchID})
	return err
}

func (r *MongoMatchSnapshotRepository) ListUnfinished(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"updated_at": 1})
	cursor, err := r.collection().Find(ctx, bson.M{"status": bson.M{"$ne": entity.MatchStatusFinished}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			MatchID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			log.Warn("跳过无法解析的快照文档: %v", err)
			continue
		}
		ids = append(ids, doc.MatchID)
	}
	return ids, cursor.Err()
}
