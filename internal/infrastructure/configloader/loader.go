// Package configloader 负责加载 YAML 配置、合并环境变量并产出强类型 Bundle。
package configloader

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	_ "github.com/go-kratos/kratos/v2/encoding/yaml"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	envConfPath        = "CONF_PATH"
	envServiceName     = "SERVICE_NAME"
	envServiceVersion  = "SERVICE_VERSION"
	envAppEnv          = "APP_ENV"
	envDatabaseURL     = "DATABASE_URL"
	envPort            = "PORT"
	envJWTSecret       = "JWT_SECRET"
	envAWSAccessKey    = "AWS_ACCESS_KEY_ID"
	envAWSSecretKey    = "AWS_SECRET_ACCESS_KEY"
	envAWSRegion       = "AWS_REGION"
	envRedisAddr       = "REDIS_ADDR"
	envQdrantHost      = "QDRANT_HOST"
	envPubSubEmulator  = "PUBSUB_EMULATOR_HOST"
	envAMQPURL         = "AMQP_URL"
	envStagingBucket   = "STAGING_BUCKET"
	envPublicBucket    = "PUBLIC_BUCKET"
	envPublicBaseURL   = "PUBLIC_BASE_URL"
	envStorageEndpoint = "S3_ENDPOINT"
	envOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置 Bundle 所需的运行时输入参数。
type Params struct {
	ConfPath string
}

// ServiceMetadata 保存服务标识信息，供日志和跨实例总线使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Bundle 聚合配置与服务元信息。
type Bundle struct {
	Bootstrap *Bootstrap
	Service   ServiceMetadata
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误。
func (e BuildError) Unwrap() error {
	return e.Err
}

// Build 从配置文件构建 Bundle。
//
// 流程：
// 1. 解析配置路径并 best-effort 加载 .env
// 2. Kratos config 读取 YAML 并扫描到 Bootstrap
// 3. 环境变量覆盖、默认值补齐、校验
// 4. 推导服务元信息
func Build(params Params) (*Bundle, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	bootstrap, err := loadBootstrap(confPath)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Bootstrap: bootstrap,
		Service:   buildServiceMetadata(),
	}, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

func loadBootstrap(confPath string) (*Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&bc)
	applyDefaults(&bc)
	if err := Validate(&bc); err != nil {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return &bc, nil
}

// Validate 检查必填字段与阈值关系。
func Validate(bc *Bootstrap) error {
	if bc == nil {
		return errors.New("bootstrap is nil")
	}
	var errs []error
	if bc.Data.Postgres.DSN == "" {
		errs = append(errs, errors.New("data.postgres.dsn is required (set DATABASE_URL)"))
	}
	if bc.Storage.StagingBucket == "" {
		errs = append(errs, errors.New("storage.staging_bucket is required"))
	}
	if bc.Storage.Region == "" {
		errs = append(errs, errors.New("storage.region is required (set AWS_REGION)"))
	}
	if bc.Server.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("server.auth.jwt_secret is required (set JWT_SECRET)"))
	}
	m := bc.Moderation
	if m.FlagThreshold > m.RejectThreshold {
		errs = append(errs, fmt.Errorf("moderation.flag_threshold (%.2f) must not exceed reject_threshold (%.2f)", m.FlagThreshold, m.RejectThreshold))
	}
	if m.RejectThreshold > 1 || m.FlagThreshold > 1 {
		errs = append(errs, errors.New("moderation thresholds must be within [0,1]"))
	}
	switch strings.ToLower(bc.Publish.Driver) {
	case "s3", "gcs":
		if bc.Publish.PublicBucket == "" {
			errs = append(errs, errors.New("publish.public_bucket is required"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("publish.driver %q is not supported", bc.Publish.Driver))
	}
	switch strings.ToLower(bc.Events.Driver) {
	case "":
	case "pubsub":
		if bc.Events.PubSub.ProjectID == "" || bc.Events.PubSub.TopicID == "" {
			errs = append(errs, errors.New("events.pubsub.project_id and topic_id are required"))
		}
	case "amqp":
		if bc.Events.AMQP.URL == "" || bc.Events.AMQP.Exchange == "" {
			errs = append(errs, errors.New("events.amqp.url and exchange are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver %q is not supported", bc.Events.Driver))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段，空值不覆盖。
func applyEnvOverrides(bc *Bootstrap) {
	if bc == nil {
		return
	}
	setIf := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIf(&bc.Data.Postgres.DSN, envDatabaseURL)
	setIf(&bc.Server.Auth.JWTSecret, envJWTSecret)
	setIf(&bc.Storage.AccessKeyID, envAWSAccessKey)
	setIf(&bc.Storage.SecretAccessKey, envAWSSecretKey)
	setIf(&bc.Storage.Region, envAWSRegion)
	setIf(&bc.Storage.Endpoint, envStorageEndpoint)
	setIf(&bc.Storage.StagingBucket, envStagingBucket)
	setIf(&bc.Publish.PublicBucket, envPublicBucket)
	setIf(&bc.Publish.PublicBaseURL, envPublicBaseURL)
	setIf(&bc.Realtime.Redis.Addr, envRedisAddr)
	setIf(&bc.Vector.Host, envQdrantHost)
	setIf(&bc.Events.PubSub.EmulatorEndpoint, envPubSubEmulator)
	setIf(&bc.Events.AMQP.URL, envAMQPURL)
	setIf(&bc.Observability.Tracing.Endpoint, envOTLPEndpoint)
	// Cloud Run 等平台通过 $PORT 动态分配端口
	if port := os.Getenv(envPort); port != "" {
		bc.Server.HTTP.Addr = replacePort(bc.Server.HTTP.Addr, port)
	}
}

func buildServiceMetadata() ServiceMetadata {
	name := firstNonEmpty(os.Getenv(envServiceName), defaultServiceName)
	version := firstNonEmpty(os.Getenv(envServiceVersion), defaultVersion)
	env := firstNonEmpty(os.Getenv(envAppEnv), defaultEnvironment)
	host, _ := os.Hostname()
	// 同一主机可能运行多个实例，实例 ID 需要唯一以区分总线消息来源
	instance := uuid.NewString()
	if host != "" {
		instance = host + "-" + instance[:8]
	}
	return ServiceMetadata{
		Name:        name,
		Version:     version,
		Environment: env,
		InstanceID:  instance,
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 依次在配置目录与当前工作目录中查找 .env.local/.env。
func envFileCandidates(confPath string) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range orderedDirs(confPath) {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// replacePort 替换地址中的端口部分，保留 host。
func replacePort(addr, newPort string) string {
	if addr == "" {
		return "0.0.0.0:" + newPort
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0:" + newPort
	}
	return net.JoinHostPort(host, newPort)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
