package controllers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/auth"
	"github.com/bionicotaku/lingo-services-moderation/internal/metadata"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// 路由操作名，供日志与指标中间件区分请求。
const (
	OperationUploadVideo   = "/moderation.v1.VideoService/UploadVideo"
	OperationGetVideo      = "/moderation.v1.VideoService/GetVideo"
	OperationSimilarVideos = "/moderation.v1.VideoService/SimilarVideos"
)

const (
	reasonUnauthorized   = "UNAUTHORIZED"
	reasonVideoIDInvalid = "VIDEO_ID_INVALID"
	reasonInternal       = "INTERNAL"

	formFieldVideo       = "video"
	formFieldTitle       = "title"
	formFieldDescription = "description"

	multipartMemory = 32 << 20
)

// Submitter 暂存上传并提交审核作业。
type Submitter interface {
	Submit(ctx context.Context, input services.SubmitInput) (*po.Video, error)
}

// VideoReader 查询视频详情与相似视频。
type VideoReader interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*vo.VideoDetail, error)
	SimilarVideos(ctx context.Context, id uuid.UUID, limit int) ([]vo.SearchHit, error)
}

// UploadResponse 为上传受理后的响应。
type UploadResponse struct {
	VideoID          string `json:"video_id"`
	ModerationStatus string `json:"moderation_status"`
}

// SimilarResponse 为相似视频检索结果。
type SimilarResponse struct {
	VideoID string         `json:"video_id"`
	Items   []vo.SearchHit `json:"items"`
}

// VideoHandler 提供上传交接与查询的 HTTP 接口。
type VideoHandler struct {
	*BaseHandler
	submit Submitter
	query  VideoReader
	log    *log.Helper
}

// NewVideoHandler 构造 VideoHandler。
func NewVideoHandler(base *BaseHandler, submit Submitter, query VideoReader, logger log.Logger) *VideoHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{}, nil)
	}
	return &VideoHandler{BaseHandler: base, submit: submit, query: query, log: log.NewHelper(logger)}
}

// Register 把路由挂到 Kratos HTTP Server。
func (h *VideoHandler) Register(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.POST("/videos", h.Upload)
	r.GET("/videos/{id}", h.Get)
	r.GET("/videos/{id}/similar", h.Similar)
}

// Upload 接收 multipart 上传：video 文件、title、description。
// 成功时返回 202，审核结果稍后通过实时通道推送。
func (h *VideoHandler) Upload(ctx khttp.Context) error {
	req := ctx.Request()
	userID, err := h.authenticate(req)
	if err != nil {
		return err
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return kerrors.BadRequest(services.ReasonUploadInvalid, "multipart form is required").WithCause(err)
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := req.FormFile(formFieldVideo)
	if err != nil {
		return kerrors.BadRequest(services.ReasonUploadInvalid, "video file is required").WithCause(err)
	}
	defer file.Close()

	meta := h.ExtractMetadata(req)
	meta.UserID = userID
	input := services.SubmitInput{
		UserID:      userID,
		Title:       req.FormValue(formFieldTitle),
		Description: req.FormValue(formFieldDescription),
		ContentType: partContentType(header),
		FileName:    header.Filename,
		Body:        file,
		Size:        header.Size,
	}

	khttp.SetOperation(ctx, OperationUploadVideo)
	handler := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		timeoutCtx, cancel := h.WithTimeout(c, HandlerTypeCommand)
		defer cancel()
		return h.submit.Submit(metadata.Inject(timeoutCtx, meta), input)
	})
	out, err := handler(ctx, nil)
	if err != nil {
		return toHTTPError(err, "upload failed")
	}
	video := out.(*po.Video)
	return ctx.Result(http.StatusAccepted, UploadResponse{
		VideoID:          video.ID.String(),
		ModerationStatus: string(video.ModerationStatus),
	})
}

// Get 返回视频详情，路径参数 id 为视频 UUID。
func (h *VideoHandler) Get(ctx khttp.Context) error {
	id, err := parseVideoID(ctx.Vars().Get("id"))
	if err != nil {
		return err
	}
	meta := h.ExtractMetadata(ctx.Request())

	khttp.SetOperation(ctx, OperationGetVideo)
	handler := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		timeoutCtx, cancel := h.WithTimeout(c, HandlerTypeQuery)
		defer cancel()
		return h.query.GetVideo(metadata.Inject(timeoutCtx, meta), id)
	})
	out, err := handler(ctx, nil)
	if err != nil {
		return toHTTPError(err, "get video failed")
	}
	return ctx.Result(http.StatusOK, out)
}

// Similar 返回与该视频相似的已通过视频，limit 取自查询参数。
func (h *VideoHandler) Similar(ctx khttp.Context) error {
	id, err := parseVideoID(ctx.Vars().Get("id"))
	if err != nil {
		return err
	}
	limit := 0
	if raw := strings.TrimSpace(ctx.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return kerrors.BadRequest(services.ReasonUploadInvalid, "limit must be a non-negative integer")
		}
	}
	meta := h.ExtractMetadata(ctx.Request())

	khttp.SetOperation(ctx, OperationSimilarVideos)
	handler := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		timeoutCtx, cancel := h.WithTimeout(c, HandlerTypeQuery)
		defer cancel()
		return h.query.SimilarVideos(metadata.Inject(timeoutCtx, meta), id, limit)
	})
	out, err := handler(ctx, nil)
	if err != nil {
		return toHTTPError(err, "similar videos failed")
	}
	hits := out.([]vo.SearchHit)
	if hits == nil {
		hits = []vo.SearchHit{}
	}
	return ctx.Result(http.StatusOK, SimilarResponse{VideoID: id.String(), Items: hits})
}

func (h *VideoHandler) authenticate(r *http.Request) (string, error) {
	if h.auth == nil {
		return "", kerrors.Unauthorized(reasonUnauthorized, "authentication is not configured")
	}
	userID, err := h.auth.Verify(auth.TokenFromRequest(r))
	if err != nil {
		return "", kerrors.Unauthorized(reasonUnauthorized, "invalid or missing bearer token").WithCause(err)
	}
	return userID, nil
}

func parseVideoID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, kerrors.BadRequest(reasonVideoIDInvalid, "video id must be a uuid")
	}
	return id, nil
}

func partContentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}

// toHTTPError 保留服务层给出的 Kratos 错误，其余映射为 500/504。
func toHTTPError(err error, message string) error {
	var ke *kerrors.Error
	if errors.As(err, &ke) {
		return ke
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return kerrors.GatewayTimeout(reasonInternal, "request timed out").WithCause(err)
	}
	return kerrors.InternalServer(reasonInternal, message).WithCause(err)
}
