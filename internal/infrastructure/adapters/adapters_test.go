package adapters

import (
	"context"
	"io"
	"testing"

	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/s3store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func TestProvidePublisher_SelectsDriver(t *testing.T) {
	ctx := context.Background()
	logger := log.NewStdLogger(io.Discard)
	storage := &configloader.Storage{Region: "us-east-1", StagingBucket: "staging"}
	client := s3store.NewClientFromConfig(aws.Config{Region: "us-east-1"}, storage)

	p, cleanup, err := ProvidePublisher(ctx, client, nil, storage, &configloader.Publish{Driver: "none"}, logger)
	require.NoError(t, err)
	require.Nil(t, p)
	cleanup()

	p, cleanup, err = ProvidePublisher(ctx, client, nil, storage, nil, logger)
	require.NoError(t, err)
	require.Nil(t, p)
	cleanup()

	p, cleanup, err = ProvidePublisher(ctx, client, nil, storage, &configloader.Publish{Driver: "S3", PublicBucket: "public"}, logger)
	require.NoError(t, err)
	require.IsType(t, &s3store.Publisher{}, p)
	cleanup()

	_, _, err = ProvidePublisher(ctx, client, nil, storage, &configloader.Publish{Driver: "ftp"}, logger)
	require.Error(t, err)
}

func TestProvideIndexerAndEvents_NilStaysNil(t *testing.T) {
	require.Nil(t, ProvideIndexer(nil))
	require.Nil(t, ProvideEventPublisher(nil))
}
