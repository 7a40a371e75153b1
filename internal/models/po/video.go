// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
package po

import (
	"time"

	"github.com/google/uuid"
)

// ModerationStatus 表示视频的审核状态。
// pending 只能迁移一次到三个终态之一，终态不可回退。
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationFlagged  ModerationStatus = "flagged"
	ModerationRejected ModerationStatus = "rejected"
)

// IsTerminal 报告状态是否为终态。
func (s ModerationStatus) IsTerminal() bool {
	switch s {
	case ModerationApproved, ModerationFlagged, ModerationRejected:
		return true
	default:
		return false
	}
}

// Valid 报告是否为已知状态。
func (s ModerationStatus) Valid() bool {
	return s == ModerationPending || s.IsTerminal()
}

// Video 表示 videos 表的数据库实体。
type Video struct {
	ID                 uuid.UUID         `db:"id"`
	UserID             string            `db:"user_id"`
	Title              string            `db:"title"`
	Description        string            `db:"description"`
	ContentType        string            `db:"content_type"`
	SizeBytes          int64             `db:"size_bytes"`
	StorageKey         string            `db:"storage_key"`          // 暂存桶对象键，写入后不可变
	PublicationID      *string           `db:"publication_id"`       // 发布步骤使用的对象标识
	TemporaryPublicURL *string           `db:"temporary_public_url"` // 预签名私有 URL
	DeliveryURL        *string           `db:"delivery_url"`         // 对外播放地址
	ModerationJobID    *string           `db:"moderation_job_id"`
	ModerationStatus   ModerationStatus  `db:"moderation_status"`
	ModerationResult   *ModerationResult `db:"moderation_result"` // JSONB
	Embedding          []float32         `db:"embedding"`         // 仅 approved 时存在
	CreatedAt          time.Time         `db:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at"`
	ModeratedAt        *time.Time        `db:"moderated_at"`
}

// ModerationLabel 为外部审核服务返回的单个标签，Confidence 已归一化到 [0,1]。
type ModerationLabel struct {
	Name           string  `json:"name"`
	ParentCategory string  `json:"parentCategory,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// Decision 为本地判定结论。
type Decision string

const (
	DecisionPass   Decision = "PASS"
	DecisionFlag   Decision = "FLAG"
	DecisionReject Decision = "REJECT"
)

// Verdict 为一次判定的完整结论。
type Verdict struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// VideoMetadata 为审核服务回传的视频元信息。
type VideoMetadata struct {
	Codec          string  `json:"codec,omitempty"`
	Format         string  `json:"format,omitempty"`
	DurationMillis int64   `json:"durationMillis,omitempty"`
	FrameRate      float64 `json:"frameRate,omitempty"`
	FrameWidth     int64   `json:"frameWidth,omitempty"`
	FrameHeight    int64   `json:"frameHeight,omitempty"`
}

// ModerationResult 与状态迁移原子写入，用于审计。
// 失败路径只填写 Error/Status。
type ModerationResult struct {
	Labels        []ModerationLabel `json:"labels,omitempty"`
	Verdict       *Verdict          `json:"verdict,omitempty"`
	VideoMetadata *VideoMetadata    `json:"videoMetadata,omitempty"`
	Error         string            `json:"error,omitempty"`
	Status        string            `json:"status,omitempty"`
}
