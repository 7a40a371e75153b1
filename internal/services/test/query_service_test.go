package services_test

import (
	"context"
	"io"
	"testing"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestVideoQueryService_GetVideoNotFound(t *testing.T) {
	svc := services.NewVideoQueryService(newMemoryStore(), &stubIndexer{}, log.NewStdLogger(io.Discard))
	_, err := svc.GetVideo(context.Background(), uuid.New())
	require.True(t, kerrors.IsNotFound(err))
}

func TestVideoQueryService_DeliveryURLOnlyWhenApproved(t *testing.T) {
	store := newMemoryStore()
	video := pendingVideo("u", "job")
	store.put(video)
	svc := services.NewVideoQueryService(store, nil, log.NewStdLogger(io.Discard))

	detail, err := svc.GetVideo(context.Background(), video.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", detail.ModerationStatus)
	require.Nil(t, detail.DeliveryURL)
}

func TestVideoQueryService_SimilarVideosExcludesSelf(t *testing.T) {
	store := newMemoryStore()
	video := pendingVideo("u", "job")
	video.ModerationStatus = po.ModerationApproved
	video.Embedding = []float32{1, 0}
	store.put(video)

	other := uuid.NewString()
	indexer := &stubIndexer{hits: []vo.SearchHit{
		{ID: 1, Score: 1, Payload: vo.VectorPayload{VideoID: video.ID.String()}},
		{ID: 2, Score: 0.9, Payload: vo.VectorPayload{VideoID: other}},
	}}
	svc := services.NewVideoQueryService(store, indexer, log.NewStdLogger(io.Discard))

	hits, err := svc.SimilarVideos(context.Background(), video.ID, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, other, hits[0].Payload.VideoID)
	require.Equal(t, 6, indexer.limit)
	require.Equal(t, map[string]string{"moderationStatus": "approved"}, indexer.filter)
}

func TestVideoQueryService_SimilarVideosRequiresEmbedding(t *testing.T) {
	store := newMemoryStore()
	video := pendingVideo("u", "job")
	store.put(video)
	svc := services.NewVideoQueryService(store, &stubIndexer{}, log.NewStdLogger(io.Discard))

	_, err := svc.SimilarVideos(context.Background(), video.ID, 5)
	require.True(t, kerrors.IsBadRequest(err))
	require.Equal(t, services.ReasonNotIndexed, kerrors.Reason(err))
}

func TestVideoQueryService_SearchDisabled(t *testing.T) {
	svc := services.NewVideoQueryService(newMemoryStore(), nil, log.NewStdLogger(io.Discard))
	_, err := svc.SimilarVideos(context.Background(), uuid.New(), 5)
	require.True(t, kerrors.IsServiceUnavailable(err))
}
