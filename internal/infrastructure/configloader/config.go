package configloader

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bootstrap 是 configs/config.yaml 的强类型映射。
type Bootstrap struct {
	Server        Server        `json:"server"`
	Data          Data          `json:"data"`
	Storage       Storage       `json:"storage"`
	Publish       Publish       `json:"publish"`
	Moderation    Moderation    `json:"moderation"`
	Vector        Vector        `json:"vector"`
	Events        Events        `json:"events"`
	Realtime      Realtime      `json:"realtime"`
	Observability Observability `json:"observability"`
}

// Server 描述 HTTP 监听与握手鉴权参数。
type Server struct {
	HTTP HTTPServer `json:"http"`
	Auth Auth       `json:"auth"`
}

// HTTPServer 对应 Kratos HTTP Server 选项。
type HTTPServer struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Auth 控制 JWT 校验。
type Auth struct {
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

// Data 聚合持久化配置。
type Data struct {
	Postgres Postgres `json:"postgres"`
}

// Postgres 对应 pgxpool 与迁移配置。
type Postgres struct {
	DSN                      string   `json:"dsn"`
	MaxOpenConns             int32    `json:"max_open_conns"`
	MinOpenConns             int32    `json:"min_open_conns"`
	MaxConnLifetime          Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime          Duration `json:"max_conn_idle_time"`
	HealthCheckPeriod        Duration `json:"health_check_period"`
	Schema                   string   `json:"schema"`
	EnablePreparedStatements bool     `json:"enable_prepared_statements"`
	MigrateOnStart           bool     `json:"migrate_on_start"`
}

// Storage 描述私有暂存桶（S3 兼容）。
type Storage struct {
	Region          string   `json:"region"`
	Endpoint        string   `json:"endpoint"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	UsePathStyle    bool     `json:"use_path_style"`
	StagingBucket   string   `json:"staging_bucket"`
	KeyPrefix       string   `json:"key_prefix"`
	PresignTTL      Duration `json:"presign_ttl"`
	MaxUploadBytes  int64    `json:"max_upload_bytes"`
}

// Publish 描述审核通过后的公开分发目标。
type Publish struct {
	// Driver 取值 s3 / gcs / none。
	Driver          string `json:"driver"`
	PublicBucket    string `json:"public_bucket"`
	PublicBaseURL   string `json:"public_base_url"`
	CredentialsFile string `json:"credentials_file"`
}

// Moderation 控制轮询节奏与判定策略。
type Moderation struct {
	PollInterval     Duration `json:"poll_interval"`
	BatchSize        int      `json:"batch_size"`
	ItemDelay        Duration `json:"item_delay"`
	MaxPendingAge    Duration `json:"max_pending_age"`
	CallTimeout      Duration `json:"call_timeout"`
	PublishTimeout   Duration `json:"publish_timeout"`
	WriteTimeout     Duration `json:"write_timeout"`
	MinConfidence    float32  `json:"min_confidence"`
	RejectThreshold  float64  `json:"reject_threshold"`
	FlagThreshold    float64  `json:"flag_threshold"`
	RejectCategories []string `json:"reject_categories"`
	FlagCategories   []string `json:"flag_categories"`
	EmbeddingDims    int      `json:"embedding_dims"`
}

// Vector 对应 Qdrant 连接参数，Host 为空时关闭向量索引。
type Vector struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"api_key"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
}

// Events 选择审核完成事件的发布通道。
type Events struct {
	// Driver 取值 pubsub / amqp，留空表示不发布。
	Driver string `json:"driver"`
	PubSub PubSub `json:"pubsub"`
	AMQP   AMQP   `json:"amqp"`
}

// PubSub 对应 GCP Pub/Sub 发布端。
type PubSub struct {
	ProjectID        string `json:"project_id"`
	TopicID          string `json:"topic_id"`
	EmulatorEndpoint string `json:"emulator_endpoint"`
}

// AMQP 对应 RabbitMQ 发布端。
type AMQP struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

// Realtime 控制 WebSocket 推送通道。
type Realtime struct {
	SendBuffer      int      `json:"send_buffer"`
	WriteWait       Duration `json:"write_wait"`
	PongWait        Duration `json:"pong_wait"`
	PingPeriod      Duration `json:"ping_period"`
	MaxMessageBytes int64    `json:"max_message_bytes"`
	AllowedOrigins  []string `json:"allowed_origins"`
	Redis           Redis    `json:"redis"`
}

// Redis 为跨实例在线表与广播总线，Addr 为空时仅单实例运行。
type Redis struct {
	Addr        string `json:"addr"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	Channel     string `json:"channel"`
	PresenceKey string `json:"presence_key"`
}

// Observability 控制日志级别、指标暴露与链路追踪。
type Observability struct {
	LogLevel       string  `json:"log_level"`
	MetricsEnabled bool    `json:"metrics_enabled"`
	MetricsPath    string  `json:"metrics_path"`
	Tracing        Tracing `json:"tracing"`
}

// Tracing 控制 TracerProvider。Exporter 取值 otlp / stdout，留空时只生成 trace 上下文不导出。
type Tracing struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"`
	Endpoint    string  `json:"endpoint"`
	Insecure    bool    `json:"insecure"`
	SampleRatio float64 `json:"sample_ratio"`
}

// Duration 支持 "30s" 形式的字符串或以秒为单位的数字。
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(b, &seconds); err != nil {
		return fmt.Errorf("invalid duration %s: %w", raw, err)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// MarshalJSON 以字符串形式输出。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std 返回 time.Duration。
func (d Duration) Std() time.Duration { return time.Duration(d) }
