package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrVideoNotFound 表示视频记录不存在。
	ErrVideoNotFound = errors.New("video not found")
	// ErrVideoNotPending 表示视频已处于终态，本次状态迁移被忽略。
	ErrVideoNotPending = errors.New("video moderation already finalized")
	// ErrInvalidTransition 表示目标状态不是终态。
	ErrInvalidTransition = errors.New("moderation status must transition to a terminal value")
)

const videoColumns = `id, user_id, title, description, content_type, size_bytes, storage_key,
	publication_id, temporary_public_url, delivery_url, moderation_job_id,
	moderation_status, moderation_result, embedding, created_at, updated_at, moderated_at`

// VideoRepository 封装 videos 表的访问逻辑。
type VideoRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewVideoRepository 构造 VideoRepository。
func NewVideoRepository(db *pgxpool.Pool, logger log.Logger) *VideoRepository {
	return &VideoRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// CreateVideoInput 描述提交审核后一次性写入的字段。
type CreateVideoInput struct {
	ID                 uuid.UUID
	UserID             string
	Title              string
	Description        string
	ContentType        string
	SizeBytes          int64
	StorageKey         string
	PublicationID      string
	TemporaryPublicURL string
	ModerationJobID    string
}

// Create 插入 pending 记录，作业 ID 与状态在同一条语句中写入。
func (r *VideoRepository) Create(ctx context.Context, input CreateVideoInput) (*po.Video, error) {
	const query = `
INSERT INTO videos (
	id, user_id, title, description, content_type, size_bytes, storage_key,
	publication_id, temporary_public_url, delivery_url, moderation_job_id, moderation_status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, 'pending')
RETURNING ` + videoColumns

	row := r.db.QueryRow(ctx, query,
		input.ID,
		input.UserID,
		input.Title,
		input.Description,
		input.ContentType,
		input.SizeBytes,
		input.StorageKey,
		nullableText(input.PublicationID),
		nullableText(input.TemporaryPublicURL),
		input.ModerationJobID,
	)
	video, err := scanVideo(row)
	if err != nil {
		r.log.WithContext(ctx).Errorf("create video failed: video_id=%s job_id=%s err=%v", input.ID, input.ModerationJobID, err)
		return nil, fmt.Errorf("create video: %w", err)
	}
	return video, nil
}

// GetByID 按主键查询。
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*po.Video, error) {
	row := r.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListPendingModeration 返回最早提交、仍处于 pending 且带有作业 ID 的视频。
// 终态视频不会被选中，因此同一视频不会被二次判定。
func (r *VideoRepository) ListPendingModeration(ctx context.Context, limit int) ([]*po.Video, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
SELECT `+videoColumns+`
FROM videos
WHERE moderation_status = 'pending' AND moderation_job_id IS NOT NULL
ORDER BY created_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending videos: %w", err)
	}
	defer rows.Close()

	var out []*po.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending video: %w", err)
		}
		out = append(out, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending videos: %w", err)
	}
	return out, nil
}

// ApplyModerationInput 描述一次终态迁移。
type ApplyModerationInput struct {
	VideoID     uuid.UUID
	Status      po.ModerationStatus
	Result      *po.ModerationResult
	Embedding   []float32
	DeliveryURL *string
	ModeratedAt time.Time
}

// ApplyModerationOutcome 原子地写入终态、审核结果、向量与分发地址。
// 仅当记录仍为 pending 时生效，否则返回 ErrVideoNotPending。
func (r *VideoRepository) ApplyModerationOutcome(ctx context.Context, input ApplyModerationInput) (*po.Video, error) {
	if !input.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}
	moderatedAt := input.ModeratedAt
	if moderatedAt.IsZero() {
		moderatedAt = time.Now().UTC()
	}

	var embedding any
	if len(input.Embedding) > 0 {
		embedding = input.Embedding
	}
	result, err := encodeResult(input.Result)
	if err != nil {
		return nil, fmt.Errorf("encode moderation result: %w", err)
	}

	row := r.db.QueryRow(ctx, `
UPDATE videos SET
	moderation_status = $2,
	moderation_result = $3,
	embedding         = $4,
	delivery_url      = COALESCE($5, delivery_url),
	moderated_at      = $6,
	updated_at        = $6
WHERE id = $1 AND moderation_status = 'pending'
RETURNING `+videoColumns,
		input.VideoID,
		string(input.Status),
		result,
		embedding,
		input.DeliveryURL,
		moderatedAt,
	)
	video, err := scanVideo(row)
	if err == nil {
		return video, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.WithContext(ctx).Errorf("apply moderation outcome failed: video_id=%s status=%s err=%v", input.VideoID, input.Status, err)
		return nil, fmt.Errorf("apply moderation outcome: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, input.VideoID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check video existence: %w", err)
	}
	if !exists {
		return nil, ErrVideoNotFound
	}
	return nil, ErrVideoNotPending
}

// Ping 用于 readiness 检查。
func (r *VideoRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanVideo(row pgx.Row) (*po.Video, error) {
	var (
		v      po.Video
		status string
	)
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.Title,
		&v.Description,
		&v.ContentType,
		&v.SizeBytes,
		&v.StorageKey,
		&v.PublicationID,
		&v.TemporaryPublicURL,
		&v.DeliveryURL,
		&v.ModerationJobID,
		&status,
		&v.ModerationResult,
		&v.Embedding,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.ModeratedAt,
	)
	if err != nil {
		return nil, err
	}
	v.ModerationStatus = po.ModerationStatus(status)
	return &v, nil
}

// encodeResult 以文本形式传递 JSONB，兼容 simple protocol。
func encodeResult(result *po.ModerationResult) (*string, error) {
	if result == nil {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	return &text, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
