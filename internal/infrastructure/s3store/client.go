// Package s3store 实现私有暂存桶（上传原件）与公开分发桶之间的对象操作。
package s3store

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/awsconfig"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kratos/kratos/v2/log"
)

const headBucketTimeout = 10 * time.Second

// NewClient 构造 S3 客户端并校验暂存桶可访问。
func NewClient(ctx context.Context, c *configloader.Storage, logger log.Logger) (*s3.Client, error) {
	awsCfg, err := awsconfig.Load(ctx, c)
	if err != nil {
		return nil, err
	}
	client := NewClientFromConfig(awsCfg, c)

	headCtx, cancel := context.WithTimeout(ctx, headBucketTimeout)
	defer cancel()
	if _, err := client.HeadBucket(headCtx, &s3.HeadBucketInput{Bucket: aws.String(c.StagingBucket)}); err != nil {
		return nil, fmt.Errorf("s3: unable to access bucket %s: %w", c.StagingBucket, err)
	}
	log.NewHelper(logger).Infof("s3: staging bucket ready: bucket=%s region=%s endpoint=%s", c.StagingBucket, c.Region, c.Endpoint)
	return client, nil
}

// NewClientFromConfig 应用自定义 endpoint（MinIO/LocalStack 等 S3 兼容存储）。
func NewClientFromConfig(awsCfg aws.Config, c *configloader.Storage) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})
}
