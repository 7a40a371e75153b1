package s3store

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func newTestStager(t *testing.T, storage *configloader.Storage) *Stager {
	t.Helper()
	awsCfg := aws.Config{
		Region:      storage.Region,
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	stager, err := NewStager(NewClientFromConfig(awsCfg, storage), storage, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return stager
}

func TestStager_PresignGet(t *testing.T) {
	stager := newTestStager(t, &configloader.Storage{
		Region:        "us-east-1",
		StagingBucket: "staging",
		Endpoint:      "http://localhost:9000",
		UsePathStyle:  true,
	})

	raw, err := stager.PresignGet(context.Background(), "videos/u1/clip.mp4", 15*time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "localhost:9000", parsed.Host)
	require.Equal(t, "/staging/videos/u1/clip.mp4", parsed.Path)
	require.Equal(t, "900", parsed.Query().Get("X-Amz-Expires"))
	require.NotEmpty(t, parsed.Query().Get("X-Amz-Signature"))
}

func TestStager_ObjectKeyPrefix(t *testing.T) {
	stager := newTestStager(t, &configloader.Storage{Region: "us-east-1", StagingBucket: "staging", KeyPrefix: "/raw/"})
	require.Equal(t, "raw/videos/a.mp4", stager.objectKey("/videos/a.mp4"))

	plain := newTestStager(t, &configloader.Storage{Region: "us-east-1", StagingBucket: "staging"})
	require.Equal(t, "videos/a.mp4", plain.objectKey("videos/a.mp4"))
}

func TestNewStager_RequiresBucket(t *testing.T) {
	_, err := NewStager(nil, &configloader.Storage{}, log.NewStdLogger(io.Discard))
	require.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	require.Equal(t, "https://cdn.example/videos/u%201/clip.mp4", PublicURL("https://cdn.example/", "videos/u 1/clip.mp4"))
	require.Equal(t, "staging/videos/u1/clip.mp4", copySource("staging", "videos/u1/clip.mp4"))
}

func TestNewPublisher_DefaultBaseURL(t *testing.T) {
	storage := &configloader.Storage{Region: "eu-west-1", StagingBucket: "staging"}
	client := NewClientFromConfig(aws.Config{Region: "eu-west-1"}, storage)
	pub, err := NewPublisher(client, storage, &configloader.Publish{PublicBucket: "public"}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pub.baseURL, "https://public.s3.eu-west-1.amazonaws.com"))
}
