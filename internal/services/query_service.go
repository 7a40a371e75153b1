package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	defaultSimilarLimit = 10
	maxSimilarLimit     = 50
)

// VideoQueryService 提供视频详情与相似视频检索。
type VideoQueryService struct {
	repo    VideoStore
	indexer VectorIndexer
	log     *log.Helper
}

// NewVideoQueryService 创建 VideoQueryService，indexer 为空时相似检索不可用。
func NewVideoQueryService(repo VideoStore, indexer VectorIndexer, logger log.Logger) *VideoQueryService {
	return &VideoQueryService{
		repo:    repo,
		indexer: indexer,
		log:     log.NewHelper(logger),
	}
}

// GetVideo 返回视频详情。
func (s *VideoQueryService) GetVideo(ctx context.Context, id uuid.UUID) (*vo.VideoDetail, error) {
	video, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return vo.NewVideoDetail(video), nil
}

// SimilarVideos 以视频自身的向量检索其他已通过审核的视频，结果不含自身。
func (s *VideoQueryService) SimilarVideos(ctx context.Context, id uuid.UUID, limit int) ([]vo.SearchHit, error) {
	if s.indexer == nil {
		return nil, kerrors.ServiceUnavailable(ReasonSearchUnavailable, "vector search is disabled")
	}
	video, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.ModerationStatus != po.ModerationApproved || len(video.Embedding) == 0 || IsZeroVector(video.Embedding) {
		return nil, kerrors.BadRequest(ReasonNotIndexed, "video has no similarity embedding")
	}

	switch {
	case limit <= 0:
		limit = defaultSimilarLimit
	case limit > maxSimilarLimit:
		limit = maxSimilarLimit
	}

	hits, err := s.indexer.Search(ctx, video.Embedding, limit+1, map[string]string{
		"moderationStatus": string(po.ModerationApproved),
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("query: vector search failed: video_id=%s err=%v", id, err)
		return nil, kerrors.ServiceUnavailable(ReasonSearchFailed, "vector search failed").WithCause(err)
	}

	self := id.String()
	out := make([]vo.SearchHit, 0, limit)
	for _, hit := range hits {
		if hit.Payload.VideoID == self {
			continue
		}
		out = append(out, hit)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *VideoQueryService) load(ctx context.Context, id uuid.UUID) (*po.Video, error) {
	video, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, kerrors.NotFound(ReasonVideoNotFound, "video not found").WithCause(err)
		}
		return nil, fmt.Errorf("load video: %w", err)
	}
	return video, nil
}
