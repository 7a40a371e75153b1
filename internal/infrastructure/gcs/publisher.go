// Package gcs 把审核通过的视频从暂存桶转存到 Google Cloud Storage 公开分发桶。
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/s3store"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const defaultBaseURL = "https://storage.googleapis.com"

// Source 读取暂存对象。
type Source interface {
	Open(ctx context.Context, key string) (*s3store.Object, error)
}

// WriterFunc 打开目标对象的写入流，Close 时提交。
type WriterFunc func(ctx context.Context, bucket, key, contentType string) io.WriteCloser

// Publisher 以流式复制实现 services.Publisher。
type Publisher struct {
	source  Source
	open    WriterFunc
	bucket  string
	baseURL string
	log     *log.Helper
}

// NewStorageClient 创建 GCS 客户端，返回 cleanup。CredentialsFile 为空时使用默认凭据。
func NewStorageClient(ctx context.Context, c *configloader.Publish, logger log.Logger) (*storage.Client, func(), error) {
	var opts []option.ClientOption
	if c != nil && c.CredentialsFile != "" {
		raw, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, storage.ScopeReadWrite)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs: parse credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("gcs: new client: %w", err)
	}
	helper := log.NewHelper(logger)
	return client, func() {
		if err := client.Close(); err != nil {
			helper.Warnf("gcs: close client: %v", err)
		}
	}, nil
}

// StorageWriter 把 storage.Client 适配为 WriterFunc。
func StorageWriter(client *storage.Client) WriterFunc {
	return func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
}

// NewPublisher 创建 Publisher。
func NewPublisher(source Source, open WriterFunc, c *configloader.Publish, logger log.Logger) (*Publisher, error) {
	switch {
	case source == nil:
		return nil, errors.New("gcs publisher: source is required")
	case open == nil:
		return nil, errors.New("gcs publisher: writer is required")
	case c == nil || c.PublicBucket == "":
		return nil, errors.New("gcs publisher: public bucket is required")
	}
	base := strings.TrimRight(c.PublicBaseURL, "/")
	if base == "" {
		base = defaultBaseURL + "/" + c.PublicBucket
	}
	return &Publisher{
		source:  source,
		open:    open,
		bucket:  c.PublicBucket,
		baseURL: base,
		log:     log.NewHelper(logger),
	}, nil
}

// MakePublic 读取暂存对象写入公开桶，返回公开 URL。
func (p *Publisher) MakePublic(ctx context.Context, publicationID string) (string, error) {
	if publicationID == "" {
		return "", errors.New("gcs publisher: publication id is required")
	}
	obj, err := p.source.Open(ctx, publicationID)
	if err != nil {
		return "", fmt.Errorf("gcs publisher: open source: %w", err)
	}
	defer obj.Body.Close()

	// 写入失败时取消上下文，避免提交不完整对象。
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := p.open(writeCtx, p.bucket, publicationID, obj.ContentType)
	written, err := io.Copy(w, obj.Body)
	if err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("gcs publisher: copy %s: %w", publicationID, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs publisher: commit %s: %w", publicationID, err)
	}

	publicURL := objectURL(p.baseURL, publicationID)
	p.log.WithContext(ctx).Infof("gcs: object published: bucket=%s key=%s bytes=%d", p.bucket, publicationID, written)
	return publicURL, nil
}

func objectURL(base, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/")
}
