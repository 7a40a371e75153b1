package services

import (
	"context"
	"io"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"

	"github.com/google/uuid"
)

// VideoStore 抽象视频记录的持久化操作，便于测试替换。
type VideoStore interface {
	Create(ctx context.Context, input repositories.CreateVideoInput) (*po.Video, error)
	GetByID(ctx context.Context, id uuid.UUID) (*po.Video, error)
	ListPendingModeration(ctx context.Context, limit int) ([]*po.Video, error)
	ApplyModerationOutcome(ctx context.Context, input repositories.ApplyModerationInput) (*po.Video, error)
}

// ObjectStager 私有保存原始视频。
type ObjectStager interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Publisher 把已审核通过的对象提升为公开可访问。
type Publisher interface {
	MakePublic(ctx context.Context, publicationID string) (string, error)
}

// ModerationClient 对接外部异步审核服务。
type ModerationClient interface {
	StartJob(ctx context.Context, storageKey string) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*vo.JobStatus, error)
}

// VectorIndexer 写入与检索相似度向量。
type VectorIndexer interface {
	Upsert(ctx context.Context, point vo.VectorPoint) error
	Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]vo.SearchHit, error)
}

// EventPublisher 发布审核完成事件。
type EventPublisher interface {
	PublishModerationCompleted(ctx context.Context, event vo.ModerationCompletedEvent) error
}

// Notifier 向在线用户推送事件，不阻塞、不重试。返回值表示是否找到接收方。
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload any) bool
}
