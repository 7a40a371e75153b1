package configloader

import "time"

const (
	// defaultConfPath is the fallback configuration directory when no overrides are provided.
	defaultConfPath    = "configs"
	defaultEnvironment = "development"
	defaultServiceName = "moderation"
	defaultVersion     = "dev"

	defaultHTTPAddr    = "0.0.0.0:8000"
	defaultHTTPTimeout = 30 * time.Second

	defaultPollInterval   = 30 * time.Second
	defaultBatchSize      = 10
	defaultItemDelay      = time.Second
	defaultMaxPendingAge  = 6 * time.Hour
	defaultCallTimeout    = 20 * time.Second
	defaultPublishTimeout = 2 * time.Minute
	defaultWriteTimeout   = 10 * time.Second
	defaultMinConfidence  = 50
	defaultReject         = 0.8
	defaultFlag           = 0.5
	defaultEmbeddingDims  = 128

	defaultPresignTTL     = time.Hour
	defaultMaxUploadBytes = 512 << 20

	defaultQdrantPort       = 6334
	defaultQdrantCollection = "videos"

	defaultSendBuffer      = 64
	defaultWriteWait       = 10 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultMaxMessageBytes = 64 << 10
	defaultRedisChannel    = "moderation:realtime"
	defaultPresenceKey     = "moderation:presence"

	defaultMetricsPath = "/metrics"
)

// DefaultRejectCategories 为直接拒绝的一级类目。
var DefaultRejectCategories = []string{"Explicit Nudity", "Violence", "Visually Disturbing", "Rude Gestures"}

// DefaultFlagCategories 为需要人工复核的类目。
var DefaultFlagCategories = []string{"Suggestive", "Hate Symbols", "Gambling", "Drugs", "Tobacco", "Alcohol"}

// applyDefaults 补齐未配置的字段。MaxPendingAge 为负数时表示关闭超时。
func applyDefaults(bc *Bootstrap) {
	if bc.Server.HTTP.Addr == "" {
		bc.Server.HTTP.Addr = defaultHTTPAddr
	}
	if bc.Server.HTTP.Timeout <= 0 {
		bc.Server.HTTP.Timeout = Duration(defaultHTTPTimeout)
	}

	m := &bc.Moderation
	if m.PollInterval <= 0 {
		m.PollInterval = Duration(defaultPollInterval)
	}
	if m.BatchSize <= 0 {
		m.BatchSize = defaultBatchSize
	}
	if m.ItemDelay < 0 {
		m.ItemDelay = 0
	} else if m.ItemDelay == 0 {
		m.ItemDelay = Duration(defaultItemDelay)
	}
	if m.MaxPendingAge == 0 {
		m.MaxPendingAge = Duration(defaultMaxPendingAge)
	} else if m.MaxPendingAge < 0 {
		m.MaxPendingAge = 0
	}
	if m.CallTimeout <= 0 {
		m.CallTimeout = Duration(defaultCallTimeout)
	}
	if m.PublishTimeout <= 0 {
		m.PublishTimeout = Duration(defaultPublishTimeout)
	}
	if m.WriteTimeout <= 0 {
		m.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if m.MinConfidence <= 0 {
		m.MinConfidence = defaultMinConfidence
	}
	if m.RejectThreshold <= 0 {
		m.RejectThreshold = defaultReject
	}
	if m.FlagThreshold <= 0 {
		m.FlagThreshold = defaultFlag
	}
	if len(m.RejectCategories) == 0 {
		m.RejectCategories = append([]string(nil), DefaultRejectCategories...)
	}
	if len(m.FlagCategories) == 0 {
		m.FlagCategories = append([]string(nil), DefaultFlagCategories...)
	}
	if m.EmbeddingDims <= 0 {
		m.EmbeddingDims = defaultEmbeddingDims
	}

	if bc.Storage.PresignTTL <= 0 {
		bc.Storage.PresignTTL = Duration(defaultPresignTTL)
	}
	if bc.Storage.MaxUploadBytes <= 0 {
		bc.Storage.MaxUploadBytes = defaultMaxUploadBytes
	}
	if bc.Publish.Driver == "" {
		bc.Publish.Driver = "s3"
	}

	if bc.Vector.Port <= 0 {
		bc.Vector.Port = defaultQdrantPort
	}
	if bc.Vector.Collection == "" {
		bc.Vector.Collection = defaultQdrantCollection
	}

	rt := &bc.Realtime
	if rt.SendBuffer <= 0 {
		rt.SendBuffer = defaultSendBuffer
	}
	if rt.WriteWait <= 0 {
		rt.WriteWait = Duration(defaultWriteWait)
	}
	if rt.PongWait <= 0 {
		rt.PongWait = Duration(defaultPongWait)
	}
	if rt.PingPeriod <= 0 || rt.PingPeriod >= rt.PongWait {
		rt.PingPeriod = rt.PongWait * 9 / 10
	}
	if rt.MaxMessageBytes <= 0 {
		rt.MaxMessageBytes = defaultMaxMessageBytes
	}
	if rt.Redis.Channel == "" {
		rt.Redis.Channel = defaultRedisChannel
	}
	if rt.Redis.PresenceKey == "" {
		rt.Redis.PresenceKey = defaultPresenceKey
	}

	if bc.Observability.LogLevel == "" {
		bc.Observability.LogLevel = "info"
	}
	if bc.Observability.MetricsPath == "" {
		bc.Observability.MetricsPath = defaultMetricsPath
	}
	if tr := &bc.Observability.Tracing; tr.SampleRatio <= 0 || tr.SampleRatio > 1 {
		tr.SampleRatio = 1
	}
}
