package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
)

// JobState 为外部审核作业的状态。
type JobState string

const (
	JobInProgress JobState = "IN_PROGRESS"
	JobSucceeded  JobState = "SUCCEEDED"
	JobFailed     JobState = "FAILED"
)

// JobStatus 为一次作业查询的结果。
type JobStatus struct {
	State         JobState
	Labels        []po.ModerationLabel
	VideoMetadata *po.VideoMetadata
	Message       string
}

// VectorPoint 为写入向量库的一条记录。
type VectorPoint struct {
	ID      uint64
	Vector  []float32
	Payload VectorPayload
}

// VectorPayload 为向量记录附带的元数据，ModerationStatus 用于检索过滤。
type VectorPayload struct {
	VideoID          string `json:"videoId"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	UserID           string `json:"userId"`
	CreatedAt        string `json:"createdAt"`
	ModerationStatus string `json:"moderationStatus"`
}

// SearchHit 为向量检索命中。
type SearchHit struct {
	ID      uint64        `json:"id"`
	Score   float32       `json:"score"`
	Payload VectorPayload `json:"payload"`
}

// ModerationResultEvent 为推送给上传者的 moderation-result 负载。
type ModerationResultEvent struct {
	VideoID     string   `json:"videoId"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Decision    string   `json:"decision,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
	DeliveryURL string   `json:"deliveryUrl,omitempty"`
}

// ModerationCompletedEvent 为对外发布的领域事件。
type ModerationCompletedEvent struct {
	EventID    string    `json:"event_id"`
	VideoID    string    `json:"video_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Decision   string    `json:"decision,omitempty"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventTypeModerationCompleted 为审核完成事件的类型名。
const EventTypeModerationCompleted = "video.moderation.completed"
