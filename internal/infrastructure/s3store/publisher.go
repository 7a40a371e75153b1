package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kratos/kratos/v2/log"
)

// Publisher 通过服务端复制把暂存对象提升到公开分发桶。
type Publisher struct {
	client       *s3.Client
	sourceBucket string
	publicBucket string
	baseURL      string
	log          *log.Helper
}

// NewPublisher 创建 Publisher。PublicBaseURL 为空时使用虚拟主机风格的 S3 地址。
func NewPublisher(client *s3.Client, storage *configloader.Storage, publish *configloader.Publish, logger log.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("s3 publisher: client is required")
	}
	if publish == nil || publish.PublicBucket == "" {
		return nil, errors.New("s3 publisher: public bucket is required")
	}
	base := strings.TrimRight(publish.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", publish.PublicBucket, storage.Region)
	}
	return &Publisher{
		client:       client,
		sourceBucket: storage.StagingBucket,
		publicBucket: publish.PublicBucket,
		baseURL:      base,
		log:          log.NewHelper(logger),
	}, nil
}

// MakePublic 复制对象并返回公开 URL。
func (p *Publisher) MakePublic(ctx context.Context, publicationID string) (string, error) {
	if publicationID == "" {
		return "", errors.New("s3 publisher: publication id is required")
	}
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.publicBucket),
		Key:        aws.String(publicationID),
		CopySource: aws.String(copySource(p.sourceBucket, publicationID)),
	})
	if err != nil {
		return "", fmt.Errorf("s3 publisher: copy %s: %w", publicationID, err)
	}
	publicURL := PublicURL(p.baseURL, publicationID)
	p.log.WithContext(ctx).Infof("s3: object published: key=%s url=%s", publicationID, publicURL)
	return publicURL, nil
}

// PublicURL 拼接公开地址，逐段转义对象键。
func PublicURL(baseURL, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segments, "/")
}

func copySource(bucket, key string) string {
	return bucket + "/" + strings.TrimPrefix(PublicURL("", key), "/")
}
