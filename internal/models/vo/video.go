// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/google/uuid"
)

// VideoDetail 是对上传者可见的视频视图。
type VideoDetail struct {
	VideoID          uuid.UUID   `json:"video_id"`
	UserID           string      `json:"user_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	ModerationStatus string      `json:"moderation_status"`
	DeliveryURL      *string     `json:"delivery_url,omitempty"`
	Verdict          *po.Verdict `json:"verdict,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	ModeratedAt      *time.Time  `json:"moderated_at,omitempty"`
}

// NewVideoDetail 从持久化实体构造视图，不暴露存储键与原始标签。
func NewVideoDetail(video *po.Video) *VideoDetail {
	if video == nil {
		return nil
	}
	detail := &VideoDetail{
		VideoID:          video.ID,
		UserID:           video.UserID,
		Title:            video.Title,
		Description:      video.Description,
		ModerationStatus: string(video.ModerationStatus),
		CreatedAt:        video.CreatedAt,
		ModeratedAt:      video.ModeratedAt,
	}
	// 仅审核通过的视频对外给出播放地址
	if video.ModerationStatus == po.ModerationApproved {
		detail.DeliveryURL = video.DeliveryURL
	}
	if video.ModerationResult != nil {
		detail.Verdict = video.ModerationResult.Verdict
	}
	return detail
}
