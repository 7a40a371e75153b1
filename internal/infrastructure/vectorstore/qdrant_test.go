package vectorstore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/retrypolicy"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
)

type stubPoints struct {
	exists      bool
	created     *qdrant.CreateCollection
	upserts     []*qdrant.UpsertPoints
	upsertFails int
	query       *qdrant.QueryPoints
	results     []*qdrant.ScoredPoint
}

func (s *stubPoints) CollectionExists(context.Context, string) (bool, error) { return s.exists, nil }

func (s *stubPoints) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	s.created = req
	return nil
}

func (s *stubPoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	s.upserts = append(s.upserts, req)
	if s.upsertFails > 0 {
		s.upsertFails--
		return nil, errors.New("unavailable")
	}
	return &qdrant.UpdateResult{}, nil
}

func (s *stubPoints) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	s.query = req
	return s.results, nil
}

func newTestStore(t *testing.T, api *stubPoints) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), api, "videos", 4, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return store.WithRetryPolicy(retrypolicy.Policy{MaxRetries: 2, Base: time.Millisecond})
}

func TestNewStore_CreatesMissingCollection(t *testing.T) {
	api := &stubPoints{}
	newTestStore(t, api)
	require.NotNil(t, api.created)
	require.Equal(t, "videos", api.created.GetCollectionName())
	params := api.created.GetVectorsConfig().GetParams()
	require.Equal(t, uint64(4), params.GetSize())
	require.Equal(t, qdrant.Distance_Cosine, params.GetDistance())

	existing := &stubPoints{exists: true}
	newTestStore(t, existing)
	require.Nil(t, existing.created)
}

func TestUpsert_RetriesAndWritesPayload(t *testing.T) {
	api := &stubPoints{exists: true, upsertFails: 1}
	store := newTestStore(t, api)

	err := store.Upsert(context.Background(), vo.VectorPoint{
		ID:     42,
		Vector: []float32{1, 0, 0, 0},
		Payload: vo.VectorPayload{
			VideoID:          "v-1",
			Title:            "clip",
			ModerationStatus: "approved",
		},
	})
	require.NoError(t, err)
	require.Len(t, api.upserts, 2)

	point := api.upserts[1].GetPoints()[0]
	require.Equal(t, uint64(42), point.GetId().GetNum())
	require.Equal(t, "approved", point.GetPayload()[FieldModerationStatus].GetStringValue())
	require.Equal(t, "v-1", point.GetPayload()[fieldVideoID].GetStringValue())
}

func TestUpsert_RejectsWrongDims(t *testing.T) {
	store := newTestStore(t, &stubPoints{exists: true})
	err := store.Upsert(context.Background(), vo.VectorPoint{ID: 1, Vector: []float32{1, 2}})
	require.Error(t, err)
}

func TestSearch_AppliesFilter(t *testing.T) {
	api := &stubPoints{exists: true, results: []*qdrant.ScoredPoint{{
		Id:    qdrant.NewIDNum(7),
		Score: 0.93,
		Payload: qdrant.NewValueMap(map[string]any{
			fieldVideoID:          "v-7",
			FieldModerationStatus: "approved",
		}),
	}}}
	store := newTestStore(t, api)

	hits, err := store.Search(context.Background(), []float32{0, 1, 0, 0}, 5, map[string]string{FieldModerationStatus: "approved"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, uint64(7), hits[0].ID)
	require.InDelta(t, 0.93, hits[0].Score, 0.0001)
	require.Equal(t, "v-7", hits[0].Payload.VideoID)

	require.Equal(t, uint64(5), api.query.GetLimit())
	must := api.query.GetFilter().GetMust()
	require.Len(t, must, 1)
	match := must[0].GetField()
	require.Equal(t, FieldModerationStatus, match.GetKey())
	require.Equal(t, "approved", match.GetMatch().GetKeyword())
}

func TestSearch_ZeroLimit(t *testing.T) {
	api := &stubPoints{exists: true}
	hits, err := newTestStore(t, api).Search(context.Background(), []float32{1, 0, 0, 0}, 0, nil)
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Nil(t, api.query)
}
