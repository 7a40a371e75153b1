package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/metadata"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// SubmitInput 为上传交接后的服务层输入。
type SubmitInput struct {
	UserID      string
	Title       string
	Description string
	ContentType string
	FileName    string
	Body        io.Reader
	Size        int64
}

// SubmissionConfig 控制暂存与预签名参数。
type SubmissionConfig struct {
	PresignTTL     time.Duration
	MaxUploadBytes int64
}

// SubmissionService 暂存原始视频并提交审核作业。
type SubmissionService struct {
	repo       VideoStore
	stager     ObjectStager
	moderation ModerationClient
	cfg        SubmissionConfig
	log        *log.Helper
	newID      func() uuid.UUID
}

// NewSubmissionService 创建 SubmissionService。
func NewSubmissionService(repo VideoStore, stager ObjectStager, moderation ModerationClient, cfg SubmissionConfig, logger log.Logger) (*SubmissionService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("submission service: repository is required")
	case stager == nil:
		return nil, errors.New("submission service: stager is required")
	case moderation == nil:
		return nil, errors.New("submission service: moderation client is required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	return &SubmissionService{
		repo:       repo,
		stager:     stager,
		moderation: moderation,
		cfg:        cfg,
		log:        log.NewHelper(logger),
		newID:      uuid.New,
	}, nil
}

// Submit 暂存对象、启动审核作业，成功后一次性写入 pending 记录。
//
// 作业启动失败时同步返回错误且不落库，暂存对象会被尽力删除。
func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (*po.Video, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	logger := s.log.WithContext(ctx)

	videoID := s.newID()
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	key := fmt.Sprintf("videos/%s/%s%s", input.UserID, videoID, extensionFor(input.FileName, contentType))

	storageKey, err := s.stager.Put(ctx, key, contentType, input.Body, input.Size)
	if err != nil {
		logger.Errorf("submission: stage object failed: video_id=%s err=%v", videoID, err)
		return nil, kerrors.ServiceUnavailable(ReasonStageFailed, "failed to store upload").WithCause(err)
	}

	jobID, err := s.moderation.StartJob(ctx, storageKey)
	if err != nil {
		logger.Errorf("submission: start moderation job failed: video_id=%s key=%s err=%v", videoID, storageKey, err)
		if delErr := s.stager.Delete(context.WithoutCancel(ctx), storageKey); delErr != nil {
			logger.Warnf("submission: cleanup staged object failed: key=%s err=%v", storageKey, delErr)
		}
		return nil, kerrors.New(502, ReasonSubmitFailed, "moderation job could not be started").WithCause(err)
	}

	tempURL, err := s.stager.PresignGet(ctx, storageKey, s.cfg.PresignTTL)
	if err != nil {
		logger.Warnf("submission: presign staged object failed: key=%s err=%v", storageKey, err)
		tempURL = ""
	}

	video, err := s.repo.Create(ctx, repositories.CreateVideoInput{
		ID:                 videoID,
		UserID:             input.UserID,
		Title:              strings.TrimSpace(input.Title),
		Description:        strings.TrimSpace(input.Description),
		ContentType:        contentType,
		SizeBytes:          input.Size,
		StorageKey:         storageKey,
		PublicationID:      storageKey,
		TemporaryPublicURL: tempURL,
		ModerationJobID:    jobID,
	})
	if err != nil {
		// 作业已启动但记录未写入，作业结果将无人认领
		logger.Errorf("submission: persist video failed, orphaned job: video_id=%s job_id=%s err=%v", videoID, jobID, err)
		return nil, fmt.Errorf("persist video: %w", err)
	}

	meta, _ := metadata.FromContext(ctx)
	logger.Infof("submission: moderation job started: video_id=%s job_id=%s user_id=%s request_id=%s idempotency_key=%s",
		video.ID, jobID, input.UserID, meta.RequestID, meta.IdempotencyKey)
	return video, nil
}

func (s *SubmissionService) validate(input SubmitInput) error {
	switch {
	case strings.TrimSpace(input.UserID) == "":
		return kerrors.BadRequest(ReasonUploadInvalid, "user id is required")
	case strings.TrimSpace(input.Title) == "":
		return kerrors.BadRequest(ReasonUploadInvalid, "title is required")
	case input.Body == nil:
		return kerrors.BadRequest(ReasonUploadInvalid, "video body is required")
	case input.Size <= 0:
		return kerrors.BadRequest(ReasonUploadInvalid, "video body is empty")
	case s.cfg.MaxUploadBytes > 0 && input.Size > s.cfg.MaxUploadBytes:
		return kerrors.BadRequest(ReasonUploadInvalid, fmt.Sprintf("video exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	mediaType, _, err := mime.ParseMediaType(input.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "video/") {
		return kerrors.BadRequest(ReasonUploadInvalid, "content type must be video/*")
	}
	return nil
}

func extensionFor(fileName, contentType string) string {
	if ext := strings.ToLower(path.Ext(fileName)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch contentType {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "video/x-matroska":
		return ".mkv"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
