package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-kratos/kratos/v2/log"
)

const uploadPartSize = 16 << 20

// ErrObjectNotFound 表示暂存对象不存在。
var ErrObjectNotFound = errors.New("staged object not found")

// Object 为读取到的暂存对象，调用方负责关闭 Body。
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Stager 把原始视频写入私有暂存桶。
type Stager struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	prefix   string
	log      *log.Helper
}

// NewStager 创建 Stager。
func NewStager(client *s3.Client, c *configloader.Storage, logger log.Logger) (*Stager, error) {
	if client == nil {
		return nil, errors.New("s3 stager: client is required")
	}
	if c == nil || c.StagingBucket == "" {
		return nil, errors.New("s3 stager: staging bucket is required")
	}
	return &Stager{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		presign: s3.NewPresignClient(client),
		bucket:  c.StagingBucket,
		prefix:  strings.Trim(c.KeyPrefix, "/"),
		log:     log.NewHelper(logger),
	}, nil
}

// Bucket 返回暂存桶名称。
func (s *Stager) Bucket() string { return s.bucket }

// Put 上传对象并返回最终存储键（带前缀）。大文件自动走分片上传。
func (s *Stager) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if key == "" || body == nil {
		return "", errors.New("s3 stager: key and body are required")
	}
	fullKey := s.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3 stager: upload %s: %w", fullKey, err)
	}
	s.log.WithContext(ctx).Debugf("s3: staged object: bucket=%s key=%s size=%d", s.bucket, fullKey, size)
	return fullKey, nil
}

// PresignGet 生成临时可读的私有 URL。
func (s *Stager) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 stager: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Open 读取暂存对象。
func (s *Stager) Open(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 stager: get %s: %w", key, err)
	}
	return &Object{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

// Delete 删除暂存对象，对象不存在视为成功。
func (s *Stager) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 stager: delete %s: %w", key, err)
	}
	return nil
}

func (s *Stager) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
