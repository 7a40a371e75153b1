package services

import "errors"

// 对外错误原因，HTTP 层由 Kratos 编码为响应体中的 reason 字段。
const (
	ReasonVideoNotFound     = "VIDEO_NOT_FOUND"
	ReasonUploadInvalid     = "UPLOAD_INVALID"
	ReasonStageFailed       = "UPLOAD_STAGE_FAILED"
	ReasonSubmitFailed      = "MODERATION_SUBMIT_FAILED"
	ReasonNotIndexed        = "VIDEO_NOT_INDEXED"
	ReasonSearchFailed      = "VECTOR_SEARCH_FAILED"
	ReasonSearchUnavailable = "VECTOR_SEARCH_UNAVAILABLE"
)

var (
	// ErrMissingJobID 表示 pending 记录缺少作业 ID。
	ErrMissingJobID = errors.New("video has no moderation job id")
	// ErrUnknownJobState 表示审核服务返回了无法识别的状态。
	ErrUnknownJobState = errors.New("unknown moderation job state")
)
