package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/awsconfig"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	pageSize = 1000
	// 翻页上限，防止 NextToken 异常时死循环。
	maxPages = 50
)

// ErrTooManyPages 表示翻页上限内未读完标签，结果不完整不可用于判定。
var ErrTooManyPages = errors.New("rekognition: moderation labels exceed page limit")

// RekognitionAPI 为 Rekognition SDK 中用到的子集。
type RekognitionAPI interface {
	StartContentModeration(ctx context.Context, params *rekognition.StartContentModerationInput, optFns ...func(*rekognition.Options)) (*rekognition.StartContentModerationOutput, error)
	GetContentModeration(ctx context.Context, params *rekognition.GetContentModerationInput, optFns ...func(*rekognition.Options)) (*rekognition.GetContentModerationOutput, error)
}

// RekognitionClient 把异步视频审核作业适配为内部的 JobStatus。
type RekognitionClient struct {
	api           RekognitionAPI
	bucket        string
	minConfidence float32
	timeout       time.Duration
	log           *log.Helper
}

// NewRekognitionClient 基于共享 aws.Config 构造客户端。
func NewRekognitionClient(ctx context.Context, storage *configloader.Storage, mod *configloader.Moderation, logger log.Logger) (*RekognitionClient, error) {
	awsCfg, err := awsconfig.Load(ctx, storage)
	if err != nil {
		return nil, err
	}
	return NewRekognitionClientWithAPI(rekognition.NewFromConfig(awsCfg), storage.StagingBucket, mod, logger)
}

// NewRekognitionClientWithAPI 允许注入 SDK 实现，测试使用。
func NewRekognitionClientWithAPI(api RekognitionAPI, bucket string, mod *configloader.Moderation, logger log.Logger) (*RekognitionClient, error) {
	if api == nil {
		return nil, errors.New("rekognition: api is required")
	}
	if bucket == "" {
		return nil, errors.New("rekognition: staging bucket is required")
	}
	c := &RekognitionClient{api: api, bucket: bucket, log: log.NewHelper(logger)}
	if mod != nil {
		c.minConfidence = mod.MinConfidence
		c.timeout = mod.CallTimeout.Std()
	}
	return c, nil
}

// StartJob 提交异步审核作业，返回作业 ID。
func (c *RekognitionClient) StartJob(ctx context.Context, storageKey string) (string, error) {
	if storageKey == "" {
		return "", errors.New("rekognition: storage key is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	input := &rekognition.StartContentModerationInput{
		Video: &types.Video{S3Object: &types.S3Object{
			Bucket: aws.String(c.bucket),
			Name:   aws.String(storageKey),
		}},
	}
	if c.minConfidence > 0 {
		input.MinConfidence = aws.Float32(c.minConfidence)
	}
	out, err := c.api.StartContentModeration(ctx, input)
	if err != nil {
		return "", fmt.Errorf("rekognition: start content moderation: %w", err)
	}
	jobID := aws.ToString(out.JobId)
	if jobID == "" {
		return "", errors.New("rekognition: empty job id")
	}
	c.log.WithContext(ctx).Infof("rekognition: job started: job_id=%s key=%s", jobID, storageKey)
	return jobID, nil
}

// GetJobStatus 查询作业状态；成功时读取全部分页并合并标签。
func (c *RekognitionClient) GetJobStatus(ctx context.Context, jobID string) (*vo.JobStatus, error) {
	if jobID == "" {
		return nil, errors.New("rekognition: job id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var (
		folder    labelFolder
		status    *vo.JobStatus
		nextToken *string
	)
	for page := 0; page < maxPages; page++ {
		out, err := c.api.GetContentModeration(ctx, &rekognition.GetContentModerationInput{
			JobId:      aws.String(jobID),
			MaxResults: aws.Int32(pageSize),
			NextToken:  nextToken,
			SortBy:     types.ContentModerationSortByTimestamp,
		})
		if err != nil {
			return nil, fmt.Errorf("rekognition: get content moderation: %w", err)
		}
		if status == nil {
			state, err := mapJobStatus(out.JobStatus)
			if err != nil {
				return nil, err
			}
			status = &vo.JobStatus{
				State:         state,
				VideoMetadata: mapVideoMetadata(out.VideoMetadata),
				Message:       aws.ToString(out.StatusMessage),
			}
			if state != vo.JobSucceeded {
				return status, nil
			}
		}
		for _, det := range out.ModerationLabels {
			folder.add(det.ModerationLabel)
		}
		nextToken = out.NextToken
		if aws.ToString(nextToken) == "" {
			break
		}
	}
	if status == nil {
		return nil, fmt.Errorf("rekognition: no response for job %s", jobID)
	}
	if aws.ToString(nextToken) != "" {
		return nil, fmt.Errorf("%w: job_id=%s pages=%d", ErrTooManyPages, jobID, maxPages)
	}
	status.Labels = folder.labels()
	return status, nil
}

func (c *RekognitionClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func mapJobStatus(status types.VideoJobStatus) (vo.JobState, error) {
	switch status {
	case types.VideoJobStatusInProgress:
		return vo.JobInProgress, nil
	case types.VideoJobStatusSucceeded:
		return vo.JobSucceeded, nil
	case types.VideoJobStatusFailed:
		return vo.JobFailed, nil
	default:
		return "", fmt.Errorf("rekognition: unknown job status %q", status)
	}
}

func mapVideoMetadata(md *types.VideoMetadata) *po.VideoMetadata {
	if md == nil {
		return nil
	}
	return &po.VideoMetadata{
		Codec:          aws.ToString(md.Codec),
		Format:         aws.ToString(md.Format),
		DurationMillis: aws.ToInt64(md.DurationMillis),
		FrameRate:      float64(aws.ToFloat32(md.FrameRate)),
		FrameWidth:     aws.ToInt64(md.FrameWidth),
		FrameHeight:    aws.ToInt64(md.FrameHeight),
	}
}

// labelFolder 按 name+parent 去重，保留最高置信度与首次出现顺序。
// Rekognition 置信度为 0-100，这里换算到 [0,1]。
type labelFolder struct {
	index map[string]int
	out   []po.ModerationLabel
}

func (f *labelFolder) add(label *types.ModerationLabel) {
	if label == nil || aws.ToString(label.Name) == "" {
		return
	}
	name := aws.ToString(label.Name)
	parent := aws.ToString(label.ParentName)
	confidence := float64(aws.ToFloat32(label.Confidence)) / 100
	if confidence > 1 {
		confidence = 1
	}
	if f.index == nil {
		f.index = make(map[string]int)
	}
	key := strings.ToLower(name) + "\x00" + strings.ToLower(parent)
	if i, ok := f.index[key]; ok {
		if confidence > f.out[i].Confidence {
			f.out[i].Confidence = confidence
		}
		return
	}
	f.index[key] = len(f.out)
	f.out = append(f.out, po.ModerationLabel{Name: name, ParentCategory: parent, Confidence: confidence})
}

func (f *labelFolder) labels() []po.ModerationLabel {
	return f.out
}
