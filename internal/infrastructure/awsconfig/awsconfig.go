// Package awsconfig 构造 S3 与 Rekognition 共用的 aws.Config。
package awsconfig

import (
	"context"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Load 优先使用配置中的静态密钥，缺省时走默认凭证链（环境变量、共享配置、实例角色）。
func Load(ctx context.Context, c *configloader.Storage) (aws.Config, error) {
	if c == nil {
		return aws.Config{}, fmt.Errorf("awsconfig: storage configuration is required")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
		config.WithRetryMaxAttempts(3),
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconfig: load default config: %w", err)
	}
	return cfg, nil
}
