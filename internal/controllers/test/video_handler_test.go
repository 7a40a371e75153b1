package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/controllers"
	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/auth"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/metadata"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	input services.SubmitInput
	body  []byte
	meta  metadata.HandlerMetadata
	err   error
}

func (f *fakeSubmitter) Submit(ctx context.Context, in services.SubmitInput) (*po.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	f.meta, _ = metadata.FromContext(ctx)
	return &po.Video{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), ModerationStatus: po.ModerationPending}, nil
}

type fakeReader struct {
	detail    *vo.VideoDetail
	hits      []vo.SearchHit
	err       error
	lastLimit int
}

func (f *fakeReader) GetVideo(_ context.Context, id uuid.UUID) (*vo.VideoDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.detail
	d.VideoID = id
	return &d, nil
}

func (f *fakeReader) SimilarVideos(_ context.Context, _ uuid.UUID, limit int) ([]vo.SearchHit, error) {
	f.lastLimit = limit
	return f.hits, f.err
}

func newServer(t *testing.T, submit controllers.Submitter, reader controllers.VideoReader) (*httptest.Server, *auth.TokenVerifier) {
	t.Helper()
	verifier, err := auth.NewTokenVerifier(&configloader.Server{Auth: configloader.Auth{JWTSecret: "test-secret"}})
	require.NoError(t, err)

	base := controllers.NewBaseHandler(controllers.HandlerTimeouts{Command: time.Second}, verifier)
	handler := controllers.NewVideoHandler(base, submit, reader, log.NewStdLogger(io.Discard))

	srv := khttp.NewServer()
	handler.Register(srv)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, verifier
}

func multipartBody(t *testing.T, title string, video []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.WriteField("description", "desc"))
	if video != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
		h.Set("Content-Type", "video/mp4")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(video)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) *kerrors.Error {
	t.Helper()
	var e kerrors.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return &e
}

func TestUpload_Accepted(t *testing.T) {
	submit := &fakeSubmitter{}
	ts, verifier := newServer(t, submit, &fakeReader{})
	token, err := verifier.Sign("user-1", time.Minute)
	require.NoError(t, err)

	body, contentType := multipartBody(t, "my clip", []byte("video-bytes"))
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/videos", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(metadata.HeaderRequestID, "req-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out controllers.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "11111111-1111-1111-1111-111111111111", out.VideoID)
	require.Equal(t, "pending", out.ModerationStatus)

	submit.mu.Lock()
	defer submit.mu.Unlock()
	require.Equal(t, "user-1", submit.input.UserID)
	require.Equal(t, "my clip", submit.input.Title)
	require.Equal(t, "desc", submit.input.Description)
	require.Equal(t, "video/mp4", submit.input.ContentType)
	require.Equal(t, "clip.mp4", submit.input.FileName)
	require.EqualValues(t, len("video-bytes"), submit.input.Size)
	require.Equal(t, []byte("video-bytes"), submit.body)
	require.Equal(t, "req-1", submit.meta.RequestID)
	require.Equal(t, "user-1", submit.meta.UserID)
}

func TestUpload_RequiresToken(t *testing.T) {
	ts, _ := newServer(t, &fakeSubmitter{}, &fakeReader{})
	body, contentType := multipartBody(t, "clip", []byte("x"))

	resp, err := http.Post(ts.URL+"/v1/videos", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Reason)
}

func TestUpload_MissingFile(t *testing.T) {
	ts, verifier := newServer(t, &fakeSubmitter{}, &fakeReader{})
	token, err := verifier.Sign("user-1", time.Minute)
	require.NoError(t, err)

	body, contentType := multipartBody(t, "clip", nil)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/videos", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, services.ReasonUploadInvalid, decodeError(t, resp).Reason)
}

func TestUpload_ServiceErrorPassesThrough(t *testing.T) {
	submit := &fakeSubmitter{err: kerrors.New(502, services.ReasonSubmitFailed, "moderation job could not be started")}
	ts, verifier := newServer(t, submit, &fakeReader{})
	token, err := verifier.Sign("user-1", time.Minute)
	require.NoError(t, err)

	body, contentType := multipartBody(t, "clip", []byte("x"))
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/videos", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, services.ReasonSubmitFailed, decodeError(t, resp).Reason)
}

func TestGetVideo(t *testing.T) {
	reader := &fakeReader{detail: &vo.VideoDetail{Title: "clip", ModerationStatus: "approved"}}
	ts, _ := newServer(t, &fakeSubmitter{}, reader)
	id := uuid.New()

	resp, err := http.Get(ts.URL + "/v1/videos/" + id.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out vo.VideoDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, id, out.VideoID)
	require.Equal(t, "approved", out.ModerationStatus)
}

func TestGetVideo_InvalidAndMissing(t *testing.T) {
	reader := &fakeReader{err: kerrors.NotFound(services.ReasonVideoNotFound, "video not found")}
	ts, _ := newServer(t, &fakeSubmitter{}, reader)

	resp, err := http.Get(ts.URL + "/v1/videos/not-a-uuid")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/videos/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, services.ReasonVideoNotFound, decodeError(t, resp).Reason)
}

func TestSimilarVideos(t *testing.T) {
	reader := &fakeReader{hits: []vo.SearchHit{{ID: 7, Score: 0.9, Payload: vo.VectorPayload{VideoID: "other"}}}}
	ts, _ := newServer(t, &fakeSubmitter{}, reader)
	id := uuid.New()

	resp, err := http.Get(ts.URL + "/v1/videos/" + id.String() + "/similar?limit=3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, reader.lastLimit)

	var out controllers.SimilarResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, id.String(), out.VideoID)
	require.Len(t, out.Items, 1)
	require.Equal(t, "other", out.Items[0].Payload.VideoID)

	resp2, err := http.Get(ts.URL + "/v1/videos/" + id.String() + "/similar?limit=abc")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestBaseHandlerWithTimeout(t *testing.T) {
	handler := controllers.NewBaseHandler(controllers.HandlerTimeouts{Command: 200 * time.Millisecond}, nil)
	ctx, cancel := handler.WithTimeout(context.Background(), controllers.HandlerTypeCommand)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	remaining := time.Until(deadline)
	require.True(t, remaining > 150*time.Millisecond && remaining <= 200*time.Millisecond, "remaining=%v", remaining)

	qctx, qcancel := handler.WithTimeout(context.Background(), controllers.HandlerTypeQuery)
	defer qcancel()
	qdeadline, ok := qctx.Deadline()
	require.True(t, ok)
	require.LessOrEqual(t, time.Until(qdeadline), 200*time.Millisecond)
}
