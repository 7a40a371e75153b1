package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"
	"github.com/bionicotaku/lingo-services-moderation/internal/repositories"

	"github.com/google/uuid"
)

// memoryStore 是 VideoStore 的内存实现，语义与仓储保持一致。
type memoryStore struct {
	mu        sync.Mutex
	videos    map[uuid.UUID]*po.Video
	created   []repositories.CreateVideoInput
	applied   []repositories.ApplyModerationInput
	createErr error
	applyErr  error
	// strictCtx 模拟 pgx：ctx 结束后写入失败。
	strictCtx bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{videos: map[uuid.UUID]*po.Video{}}
}

func (m *memoryStore) put(v *po.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[v.ID] = v
}

func (m *memoryStore) Create(_ context.Context, in repositories.CreateVideoInput) (*po.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, in)
	job := in.ModerationJobID
	v := &po.Video{
		ID:               in.ID,
		UserID:           in.UserID,
		Title:            in.Title,
		Description:      in.Description,
		ContentType:      in.ContentType,
		SizeBytes:        in.SizeBytes,
		StorageKey:       in.StorageKey,
		ModerationJobID:  &job,
		ModerationStatus: po.ModerationPending,
		CreatedAt:        time.Now(),
	}
	if in.PublicationID != "" {
		pub := in.PublicationID
		v.PublicationID = &pub
	}
	if in.TemporaryPublicURL != "" {
		tmp := in.TemporaryPublicURL
		v.TemporaryPublicURL = &tmp
		v.DeliveryURL = &tmp
	}
	m.videos[v.ID] = v
	return v, nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*po.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memoryStore) ListPendingModeration(_ context.Context, limit int) ([]*po.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*po.Video
	for _, v := range m.videos {
		if v.ModerationStatus == po.ModerationPending && v.ModerationJobID != nil {
			cp := *v
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) ApplyModerationOutcome(ctx context.Context, in repositories.ApplyModerationInput) (*po.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.strictCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	v, ok := m.videos[in.VideoID]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	if v.ModerationStatus != po.ModerationPending {
		return nil, repositories.ErrVideoNotPending
	}
	m.applied = append(m.applied, in)
	v.ModerationStatus = in.Status
	v.ModerationResult = in.Result
	v.Embedding = in.Embedding
	if in.DeliveryURL != nil {
		v.DeliveryURL = in.DeliveryURL
	}
	at := in.ModeratedAt
	v.ModeratedAt = &at
	cp := *v
	return &cp, nil
}

type stubModeration struct {
	mu       sync.Mutex
	statuses map[string]*vo.JobStatus
	errs     map[string]error
	startErr error
	started  []string
	queried  []string
}

func newStubModeration() *stubModeration {
	return &stubModeration{statuses: map[string]*vo.JobStatus{}, errs: map[string]error{}}
}

func (s *stubModeration) StartJob(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return "", s.startErr
	}
	s.started = append(s.started, key)
	return "job-" + key, nil
}

func (s *stubModeration) GetJobStatus(_ context.Context, jobID string) (*vo.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, jobID)
	if err := s.errs[jobID]; err != nil {
		return nil, err
	}
	if st, ok := s.statuses[jobID]; ok {
		return st, nil
	}
	return &vo.JobStatus{State: vo.JobInProgress}, nil
}

type stubStager struct {
	putErr  error
	deleted []string
	puts    map[string][]byte
}

func (s *stubStager) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	if s.puts == nil {
		s.puts = map[string][]byte{}
	}
	s.puts[key] = buf.Bytes()
	return key, nil
}

func (s *stubStager) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://staging.example/" + key + "?sig=abc", nil
}

func (s *stubStager) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type stubPublisher struct {
	err   error
	block bool
	calls []string
}

func (p *stubPublisher) MakePublic(ctx context.Context, id string) (string, error) {
	p.calls = append(p.calls, id)
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	return "https://cdn.example/" + id, nil
}

type stubIndexer struct {
	err    error
	points []vo.VectorPoint
	hits   []vo.SearchHit
	filter map[string]string
	limit  int
}

func (i *stubIndexer) Upsert(_ context.Context, p vo.VectorPoint) error {
	if i.err != nil {
		return i.err
	}
	i.points = append(i.points, p)
	return nil
}

func (i *stubIndexer) Search(_ context.Context, _ []float32, limit int, filter map[string]string) ([]vo.SearchHit, error) {
	i.limit = limit
	i.filter = filter
	if i.err != nil {
		return nil, i.err
	}
	return i.hits, nil
}

type sentNotification struct {
	UserID  string
	Event   string
	Payload any
}

type stubNotifier struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []sentNotification
}

func (n *stubNotifier) Notify(_ context.Context, userID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Event: event, Payload: payload})
	return true
}

type stubEvents struct {
	err    error
	events []vo.ModerationCompletedEvent
}

func (e *stubEvents) PublishModerationCompleted(_ context.Context, evt vo.ModerationCompletedEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, evt)
	return nil
}

var errBoom = errors.New("boom")

func pendingVideo(userID, jobID string) *po.Video {
	pub := "videos/" + userID + "/clip.mp4"
	tmp := "https://staging.example/" + pub + "?sig=abc"
	return &po.Video{
		ID:                 uuid.New(),
		UserID:             userID,
		Title:              "clip",
		StorageKey:         pub,
		PublicationID:      &pub,
		TemporaryPublicURL: &tmp,
		DeliveryURL:        &tmp,
		ModerationJobID:    &jobID,
		ModerationStatus:   po.ModerationPending,
		CreatedAt:          time.Now(),
	}
}
