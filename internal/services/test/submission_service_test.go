package services_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func newSubmissionService(t *testing.T, store *memoryStore, stager *stubStager, client *stubModeration) *services.SubmissionService {
	t.Helper()
	svc, err := services.NewSubmissionService(store, stager, client, services.SubmissionConfig{
		PresignTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
	}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return svc
}

func TestSubmissionService_Submit(t *testing.T) {
	store := newMemoryStore()
	stager := &stubStager{}
	client := newStubModeration()
	svc := newSubmissionService(t, store, stager, client)

	body := "fake video bytes"
	video, err := svc.Submit(context.Background(), services.SubmitInput{
		UserID:      "user-1",
		Title:       "  My clip ",
		Description: "desc",
		ContentType: "video/mp4",
		FileName:    "clip.MP4",
		Body:        strings.NewReader(body),
		Size:        int64(len(body)),
	})
	require.NoError(t, err)
	require.Equal(t, po.ModerationPending, video.ModerationStatus)
	require.Equal(t, "My clip", video.Title)
	require.True(t, strings.HasPrefix(video.StorageKey, "videos/user-1/"))
	require.True(t, strings.HasSuffix(video.StorageKey, ".mp4"))
	require.Equal(t, body, string(stager.puts[video.StorageKey]))

	require.Len(t, client.started, 1)
	require.Equal(t, video.StorageKey, client.started[0])
	require.NotNil(t, video.ModerationJobID)
	require.Equal(t, "job-"+video.StorageKey, *video.ModerationJobID)
	require.Equal(t, video.StorageKey, *video.PublicationID)
	require.Equal(t, *video.TemporaryPublicURL, *video.DeliveryURL)
}

func TestSubmissionService_StartJobFailureLeavesNoRecord(t *testing.T) {
	store := newMemoryStore()
	stager := &stubStager{}
	client := newStubModeration()
	client.startErr = errBoom
	svc := newSubmissionService(t, store, stager, client)

	_, err := svc.Submit(context.Background(), services.SubmitInput{
		UserID:      "user-1",
		Title:       "clip",
		ContentType: "video/webm",
		Body:        strings.NewReader("x"),
		Size:        1,
	})
	require.Error(t, err)
	require.Equal(t, services.ReasonSubmitFailed, kerrors.Reason(err))
	require.Empty(t, store.created)
	require.Len(t, stager.deleted, 1)

	pending, _ := store.ListPendingModeration(context.Background(), 10)
	require.Empty(t, pending)
}

func TestSubmissionService_StageFailure(t *testing.T) {
	store := newMemoryStore()
	client := newStubModeration()
	svc := newSubmissionService(t, store, &stubStager{putErr: errBoom}, client)

	_, err := svc.Submit(context.Background(), services.SubmitInput{
		UserID: "u", Title: "t", ContentType: "video/mp4", Body: strings.NewReader("x"), Size: 1,
	})
	require.Equal(t, services.ReasonStageFailed, kerrors.Reason(err))
	require.Empty(t, client.started)
	require.Empty(t, store.created)
}

func TestSubmissionService_Validation(t *testing.T) {
	svc := newSubmissionService(t, newMemoryStore(), &stubStager{}, newStubModeration())
	cases := map[string]services.SubmitInput{
		"missing user":  {Title: "t", ContentType: "video/mp4", Body: strings.NewReader("x"), Size: 1},
		"missing title": {UserID: "u", ContentType: "video/mp4", Body: strings.NewReader("x"), Size: 1},
		"not video":     {UserID: "u", Title: "t", ContentType: "image/png", Body: strings.NewReader("x"), Size: 1},
		"empty body":    {UserID: "u", Title: "t", ContentType: "video/mp4", Body: strings.NewReader(""), Size: 0},
		"too large":     {UserID: "u", Title: "t", ContentType: "video/mp4", Body: strings.NewReader("x"), Size: 2 << 20},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), input)
			require.Error(t, err)
			require.True(t, kerrors.IsBadRequest(err))
			require.Equal(t, services.ReasonUploadInvalid, kerrors.Reason(err))
		})
	}
}
