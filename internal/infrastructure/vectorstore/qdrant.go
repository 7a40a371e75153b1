// Package vectorstore 把视频嵌入写入 Qdrant 并提供相似检索。
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/retrypolicy"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/qdrant/go-client/qdrant"
)

// Payload 字段名，检索过滤依赖 moderationStatus。
const (
	fieldVideoID          = "videoId"
	fieldTitle            = "title"
	fieldDescription      = "description"
	fieldUserID           = "userId"
	fieldCreatedAt        = "createdAt"
	FieldModerationStatus = "moderationStatus"
)

// PointsAPI 为 qdrant.Client 中用到的子集。
type PointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Store 实现 services.VectorIndexer。
type Store struct {
	api        PointsAPI
	collection string
	dims       uint64
	policy     retrypolicy.Policy
	log        *log.Helper
}

// NewClient 建立 Qdrant gRPC 连接，返回 cleanup。Host 为空时返回 nil 表示禁用。
func NewClient(c *configloader.Vector, logger log.Logger) (*qdrant.Client, func(), error) {
	if c == nil || c.Host == "" {
		log.NewHelper(logger).Warn("qdrant: host not configured; vector indexing disabled")
		return nil, func() {}, nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant: connect %s:%d: %w", c.Host, c.Port, err)
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("qdrant: close client: %v", err)
		}
	}
	return client, cleanup, nil
}

// NewStore 创建 Store 并确保集合存在。
func NewStore(ctx context.Context, api PointsAPI, collection string, dims int, logger log.Logger) (*Store, error) {
	if api == nil {
		return nil, errors.New("qdrant: api is required")
	}
	if collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	if dims <= 0 {
		return nil, errors.New("qdrant: dims must be positive")
	}
	s := &Store{
		api:        api,
		collection: collection,
		dims:       uint64(dims),
		policy:     retrypolicy.Default,
		log:        log.NewHelper(logger),
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// WithRetryPolicy 覆盖默认重试策略。
func (s *Store) WithRetryPolicy(p retrypolicy.Policy) *Store {
	s.policy = p
	return s
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.api.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	err = s.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	s.log.Infof("qdrant: collection created: name=%s dims=%d", s.collection, s.dims)
	return nil
}

// Upsert 写入或覆盖一个点，按点 ID 幂等。
func (s *Store) Upsert(ctx context.Context, point vo.VectorPoint) error {
	if uint64(len(point.Vector)) != s.dims {
		return fmt.Errorf("qdrant: vector has %d dims, collection expects %d", len(point.Vector), s.dims)
	}
	wait := true
	req := &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(payloadMap(point.Payload)),
		}},
	}
	err := retrypolicy.Do(ctx, s.policy, func(ctx context.Context) error {
		_, err := s.api.Upsert(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert point %d: %w", point.ID, err)
	}
	s.log.WithContext(ctx).Debugf("qdrant: point upserted: id=%d video_id=%s", point.ID, point.Payload.VideoID)
	return nil
}

// Search 返回与 vector 最相近的点，filter 中的键值以精确匹配组合为 must 条件。
func (s *Store) Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]vo.SearchHit, error) {
	if limit <= 0 {
		return nil, nil
	}
	lim := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conds = append(conds, qdrant.NewMatch(k, v))
		}
		req.Filter = &qdrant.Filter{Must: conds}
	}

	var points []*qdrant.ScoredPoint
	err := retrypolicy.Do(ctx, s.policy, func(ctx context.Context) error {
		var err error
		points, err = s.api.Query(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	hits := make([]vo.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, vo.SearchHit{
			ID:      p.GetId().GetNum(),
			Score:   p.GetScore(),
			Payload: payloadFrom(p.GetPayload()),
		})
	}
	return hits, nil
}

func payloadMap(p vo.VectorPayload) map[string]any {
	return map[string]any{
		fieldVideoID:          p.VideoID,
		fieldTitle:            p.Title,
		fieldDescription:      p.Description,
		fieldUserID:           p.UserID,
		fieldCreatedAt:        p.CreatedAt,
		FieldModerationStatus: p.ModerationStatus,
	}
}

func payloadFrom(m map[string]*qdrant.Value) vo.VectorPayload {
	get := func(k string) string { return m[k].GetStringValue() }
	return vo.VectorPayload{
		VideoID:          get(fieldVideoID),
		Title:            get(fieldTitle),
		Description:      get(fieldDescription),
		UserID:           get(fieldUserID),
		CreatedAt:        get(fieldCreatedAt),
		ModerationStatus: get(FieldModerationStatus),
	}
}
