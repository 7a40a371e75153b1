package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// EventModerationResult 为推送给上传者的事件名。
const EventModerationResult = "moderation-result"

const (
	resultJobFailed = "moderation job failed"
	resultTimedOut  = "moderation timed out"
)

const (
	defaultPublishTimeout = 2 * time.Minute
	defaultWriteTimeout   = 10 * time.Second
)

// ModerationConfig 控制判定后的处理参数。
type ModerationConfig struct {
	Policy        PolicyConfig
	EmbeddingDims int
	// MaxPendingAge 为 pending 的最长等待时间，0 表示无限等待。
	MaxPendingAge time.Duration
	// PublishTimeout 限制公开发布，不受单项处理截止时间约束。
	PublishTimeout time.Duration
	// WriteTimeout 限制终态写入以及写入后的每个副作用。
	WriteTimeout time.Duration
}

// ModerationDeps 注入 ModerationService 的协作者。Publisher、Indexer、Events 可为空。
type ModerationDeps struct {
	Repo       VideoStore
	Moderation ModerationClient
	Publisher  Publisher
	Indexer    VectorIndexer
	Events     EventPublisher
	Notifier   Notifier
}

// ModerationService 根据作业结果驱动视频的一次性状态迁移。
type ModerationService struct {
	repo       VideoStore
	moderation ModerationClient
	publisher  Publisher
	indexer    VectorIndexer
	events     EventPublisher
	notifier   Notifier
	evaluator  *Evaluator
	cfg        ModerationConfig
	log        *log.Helper
	now        func() time.Time
}

// NewModerationService 创建 ModerationService。
func NewModerationService(deps ModerationDeps, cfg ModerationConfig, logger log.Logger) (*ModerationService, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.New("moderation service: repository is required")
	case deps.Moderation == nil:
		return nil, errors.New("moderation service: moderation client is required")
	case deps.Notifier == nil:
		return nil, errors.New("moderation service: notifier is required")
	}
	if cfg.EmbeddingDims <= 0 {
		cfg.EmbeddingDims = DefaultEmbeddingDims
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &ModerationService{
		repo:       deps.Repo,
		moderation: deps.Moderation,
		publisher:  deps.Publisher,
		indexer:    deps.Indexer,
		events:     deps.Events,
		notifier:   deps.Notifier,
		evaluator:  NewEvaluator(cfg.Policy),
		cfg:        cfg,
		log:        log.NewHelper(logger),
		now:        time.Now,
	}, nil
}

// WithClock 提供测试替换时钟的能力。
func (s *ModerationService) WithClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// ListPending 返回待查询的视频批次。
func (s *ModerationService) ListPending(ctx context.Context, limit int) ([]*po.Video, error) {
	return s.repo.ListPendingModeration(ctx, limit)
}

// ProcessVideo 查询作业状态并在终态时完成迁移。
// 返回错误表示处理异常，由调用方调用 RejectWithError 收尾。
func (s *ModerationService) ProcessVideo(ctx context.Context, video *po.Video) (Outcome, error) {
	if video == nil {
		return Outcome{}, errors.New("moderation service: video is nil")
	}
	if video.ModerationJobID == nil || *video.ModerationJobID == "" {
		return Outcome{}, ErrMissingJobID
	}

	status, err := s.moderation.GetJobStatus(ctx, *video.ModerationJobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get job status: %w", err)
	}

	switch status.State {
	case vo.JobInProgress:
		if s.expired(video) {
			s.log.WithContext(ctx).Warnf("moderation: pending too long, rejecting: video_id=%s job_id=%s age=%s",
				video.ID, *video.ModerationJobID, s.now().Sub(video.CreatedAt).Truncate(time.Second))
			out, err := s.finalize(ctx, video, po.ModerationRejected, &po.ModerationResult{
				Error:  resultTimedOut,
				Status: string(vo.JobInProgress),
			}, nil, nil)
			out.TimedOut = true
			return out, err
		}
		return Outcome{Status: po.ModerationPending, Pending: true}, nil
	case vo.JobFailed:
		return s.finalize(ctx, video, po.ModerationRejected, &po.ModerationResult{
			Error:  resultJobFailed,
			Status: string(vo.JobFailed),
		}, nil, nil)
	case vo.JobSucceeded:
		return s.applyVerdict(ctx, video, status)
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownJobState, status.State)
	}
}

// RejectWithError 把处理异常的视频强制迁移为 rejected，并记录错误信息。
func (s *ModerationService) RejectWithError(ctx context.Context, video *po.Video, cause error) (Outcome, error) {
	if video == nil || cause == nil {
		return Outcome{}, errors.New("moderation service: video and cause are required")
	}
	return s.finalize(ctx, video, po.ModerationRejected, &po.ModerationResult{
		Error:  cause.Error(),
		Status: "ERROR",
	}, nil, nil)
}

func (s *ModerationService) applyVerdict(ctx context.Context, video *po.Video, status *vo.JobStatus) (Outcome, error) {
	verdict := s.evaluator.Evaluate(status.Labels)
	result := &po.ModerationResult{
		Labels:        status.Labels,
		Verdict:       &verdict,
		VideoMetadata: status.VideoMetadata,
		Status:        string(vo.JobSucceeded),
	}

	switch verdict.Decision {
	case po.DecisionReject:
		return s.finalize(ctx, video, po.ModerationRejected, result, nil, nil)
	case po.DecisionFlag:
		return s.finalize(ctx, video, po.ModerationFlagged, result, nil, nil)
	}

	var warnings Outcome
	delivery := s.promote(ctx, video, &warnings)

	var embedding []float32
	if len(status.Labels) > 0 {
		embedding = GenerateEmbedding(status.Labels, s.cfg.EmbeddingDims)
	}

	out, err := s.finalize(ctx, video, po.ModerationApproved, result, embedding, delivery)
	out.Warnings = append(warnings.Warnings, out.Warnings...)
	return out, err
}

// promote 尝试公开发布，失败时回退到临时地址，不影响审核结论。
func (s *ModerationService) promote(ctx context.Context, video *po.Video, out *Outcome) *string {
	fallback := video.TemporaryPublicURL
	if video.PublicationID == nil || *video.PublicationID == "" || s.publisher == nil {
		return fallback
	}
	pubCtx, cancel := detachedContext(ctx, s.cfg.PublishTimeout)
	defer cancel()
	publicURL, err := s.publisher.MakePublic(pubCtx, *video.PublicationID)
	if err != nil {
		s.log.WithContext(ctx).Warnf("moderation: publish failed, keeping temporary url: video_id=%s err=%v", video.ID, err)
		out.warn(StagePublish, err)
		return fallback
	}
	return &publicURL
}

// finalize 原子写入终态；写入成功后依次执行索引、推送与事件发布。
// 结论已确定，写入与副作用使用独立的超时，调用方的截止时间不会让结论失效。
func (s *ModerationService) finalize(ctx context.Context, video *po.Video, status po.ModerationStatus, result *po.ModerationResult, embedding []float32, delivery *string) (Outcome, error) {
	logger := s.log.WithContext(ctx)
	out := Outcome{Status: status, Verdict: result.Verdict}

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancelWrite()
	updated, err := s.repo.ApplyModerationOutcome(writeCtx, repositories.ApplyModerationInput{
		VideoID:     video.ID,
		Status:      status,
		Result:      result,
		Embedding:   embedding,
		DeliveryURL: delivery,
		ModeratedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotPending) {
			logger.Infof("moderation: video already finalized, skipping: video_id=%s", video.ID)
			return Outcome{Skipped: true}, nil
		}
		return Outcome{}, fmt.Errorf("apply moderation outcome: %w", err)
	}

	logger.Infof("moderation: video finalized: video_id=%s status=%s", updated.ID, status)

	if status == po.ModerationApproved && len(embedding) > 0 && !IsZeroVector(embedding) {
		if err := s.sideEffect(ctx, func(ctx context.Context) error { return s.index(ctx, updated, embedding) }); err != nil {
			logger.Warnf("moderation: index failed: video_id=%s err=%v", updated.ID, err)
			out.warn(StageIndex, err)
		}
	}

	out.Notified = s.notifier.Notify(context.WithoutCancel(ctx), updated.UserID, EventModerationResult, resultEvent(updated, result))
	if !out.Notified {
		logger.Debugf("moderation: uploader offline, notification dropped: video_id=%s user_id=%s", updated.ID, updated.UserID)
	}

	if s.events != nil {
		event := completedEvent(updated, result, s.now())
		if err := s.sideEffect(ctx, func(ctx context.Context) error { return s.events.PublishModerationCompleted(ctx, event) }); err != nil {
			logger.Warnf("moderation: publish completion event failed: video_id=%s err=%v", updated.ID, err)
			out.warn(StageEvent, err)
		}
	}
	return out, nil
}

func (s *ModerationService) sideEffect(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := detachedContext(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return fn(callCtx)
}

// detachedContext 脱离 parent 的截止时间，以 d 为上限；parent 被显式取消（关停）时仍随之取消。
func detachedContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d)
	stop := context.AfterFunc(parent, func() {
		if errors.Is(parent.Err(), context.Canceled) {
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *ModerationService) index(ctx context.Context, video *po.Video, embedding []float32) error {
	if s.indexer == nil {
		return nil
	}
	return s.indexer.Upsert(ctx, vo.VectorPoint{
		ID:     PointID(video.ID),
		Vector: embedding,
		Payload: vo.VectorPayload{
			VideoID:          video.ID.String(),
			Title:            video.Title,
			Description:      video.Description,
			UserID:           video.UserID,
			CreatedAt:        video.CreatedAt.UTC().Format(time.RFC3339),
			ModerationStatus: string(po.ModerationApproved),
		},
	})
}

func (s *ModerationService) expired(video *po.Video) bool {
	if s.cfg.MaxPendingAge <= 0 || video.CreatedAt.IsZero() {
		return false
	}
	return s.now().Sub(video.CreatedAt) > s.cfg.MaxPendingAge
}

// PointID 把视频 ID 稳定映射为向量库的数值主键。
func PointID(id uuid.UUID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(id[:])
	return h.Sum64()
}

func resultEvent(video *po.Video, result *po.ModerationResult) vo.ModerationResultEvent {
	evt := vo.ModerationResultEvent{
		VideoID: video.ID.String(),
		Title:   video.Title,
		Status:  string(video.ModerationStatus),
	}
	if result != nil && result.Verdict != nil {
		evt.Decision = string(result.Verdict.Decision)
		evt.Reasons = result.Verdict.Reasons
	}
	if video.ModerationStatus == po.ModerationApproved && video.DeliveryURL != nil {
		evt.DeliveryURL = *video.DeliveryURL
	}
	return evt
}

func completedEvent(video *po.Video, result *po.ModerationResult, now time.Time) vo.ModerationCompletedEvent {
	evt := vo.ModerationCompletedEvent{
		EventID:    uuid.NewString(),
		VideoID:    video.ID.String(),
		UserID:     video.UserID,
		Status:     string(video.ModerationStatus),
		OccurredAt: now.UTC(),
	}
	if result != nil && result.Verdict != nil {
		evt.Decision = string(result.Verdict.Decision)
		evt.Confidence = result.Verdict.Confidence
		evt.Reasons = result.Verdict.Reasons
	}
	return evt
}
