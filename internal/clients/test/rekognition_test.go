package clients_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/bionicotaku/lingo-services-moderation/internal/clients"
	configloader "github.com/bionicotaku/lingo-services-moderation/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-moderation/internal/models/vo"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

type stubRekognition struct {
	startInput *rekognition.StartContentModerationInput
	startOut   *rekognition.StartContentModerationOutput
	startErr   error
	pages      []*rekognition.GetContentModerationOutput
	tokens     []string
	getErr     error
}

func (s *stubRekognition) StartContentModeration(_ context.Context, in *rekognition.StartContentModerationInput, _ ...func(*rekognition.Options)) (*rekognition.StartContentModerationOutput, error) {
	s.startInput = in
	return s.startOut, s.startErr
}

func (s *stubRekognition) GetContentModeration(_ context.Context, in *rekognition.GetContentModerationInput, _ ...func(*rekognition.Options)) (*rekognition.GetContentModerationOutput, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.tokens = append(s.tokens, aws.ToString(in.NextToken))
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

func detection(name, parent string, confidence float32) types.ContentModerationDetection {
	label := &types.ModerationLabel{Name: aws.String(name), Confidence: aws.Float32(confidence)}
	if parent != "" {
		label.ParentName = aws.String(parent)
	}
	return types.ContentModerationDetection{ModerationLabel: label}
}

func newClient(t *testing.T, api clients.RekognitionAPI) *clients.RekognitionClient {
	t.Helper()
	c, err := clients.NewRekognitionClientWithAPI(api, "staging", &configloader.Moderation{MinConfidence: 60}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return c
}

func TestStartJob(t *testing.T) {
	api := &stubRekognition{startOut: &rekognition.StartContentModerationOutput{JobId: aws.String("job-1")}}
	c := newClient(t, api)

	jobID, err := c.StartJob(context.Background(), "videos/u1/v1.mp4")
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "staging", aws.ToString(api.startInput.Video.S3Object.Bucket))
	require.Equal(t, "videos/u1/v1.mp4", aws.ToString(api.startInput.Video.S3Object.Name))
	require.InDelta(t, 60, aws.ToFloat32(api.startInput.MinConfidence), 0.001)
}

func TestStartJob_Errors(t *testing.T) {
	c := newClient(t, &stubRekognition{startErr: errors.New("throttled")})
	_, err := c.StartJob(context.Background(), "k")
	require.ErrorContains(t, err, "throttled")

	c = newClient(t, &stubRekognition{startOut: &rekognition.StartContentModerationOutput{}})
	_, err = c.StartJob(context.Background(), "k")
	require.Error(t, err)
}

func TestGetJobStatus_FoldsPages(t *testing.T) {
	api := &stubRekognition{pages: []*rekognition.GetContentModerationOutput{
		{
			JobStatus: types.VideoJobStatusSucceeded,
			ModerationLabels: []types.ContentModerationDetection{
				detection("Suggestive", "", 62),
				detection("Revealing Clothes", "Suggestive", 70),
			},
			VideoMetadata: &types.VideoMetadata{Codec: aws.String("h264"), DurationMillis: aws.Int64(4200), FrameRate: aws.Float32(30)},
			NextToken:     aws.String("page-2"),
		},
		{
			JobStatus: types.VideoJobStatusSucceeded,
			ModerationLabels: []types.ContentModerationDetection{
				detection("suggestive", "", 88),
				{},
			},
		},
	}}
	c := newClient(t, api)

	status, err := c.GetJobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, vo.JobSucceeded, status.State)
	require.Equal(t, []string{"", "page-2"}, api.tokens)
	require.Len(t, status.Labels, 2)
	require.Equal(t, "Suggestive", status.Labels[0].Name)
	require.InDelta(t, 0.88, status.Labels[0].Confidence, 0.0001)
	require.Equal(t, "Suggestive", status.Labels[1].ParentCategory)
	require.InDelta(t, 0.70, status.Labels[1].Confidence, 0.0001)
	require.NotNil(t, status.VideoMetadata)
	require.Equal(t, int64(4200), status.VideoMetadata.DurationMillis)
}

func TestGetJobStatus_NonTerminalStopsEarly(t *testing.T) {
	api := &stubRekognition{pages: []*rekognition.GetContentModerationOutput{
		{JobStatus: types.VideoJobStatusInProgress, NextToken: aws.String("ignored")},
	}}
	status, err := newClient(t, api).GetJobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, vo.JobInProgress, status.State)
	require.Len(t, api.tokens, 1)

	api = &stubRekognition{pages: []*rekognition.GetContentModerationOutput{
		{JobStatus: types.VideoJobStatusFailed, StatusMessage: aws.String("unsupported codec")},
	}}
	status, err = newClient(t, api).GetJobStatus(context.Background(), "job-2")
	require.NoError(t, err)
	require.Equal(t, vo.JobFailed, status.State)
	require.Equal(t, "unsupported codec", status.Message)
}

func TestGetJobStatus_UnknownStatus(t *testing.T) {
	api := &stubRekognition{pages: []*rekognition.GetContentModerationOutput{{JobStatus: "PAUSED"}}}
	_, err := newClient(t, api).GetJobStatus(context.Background(), "job-1")
	require.Error(t, err)
}

// 翻页上限内仍有后续页时返回错误，不基于部分标签给出结论。
func TestGetJobStatus_PageLimitExceeded(t *testing.T) {
	var pages []*rekognition.GetContentModerationOutput
	for i := 0; i < 50; i++ {
		pages = append(pages, &rekognition.GetContentModerationOutput{
			JobStatus:        types.VideoJobStatusSucceeded,
			ModerationLabels: []types.ContentModerationDetection{detection("Swimwear", "Suggestive", 40)},
			NextToken:        aws.String(fmt.Sprintf("page-%d", i+2)),
		})
	}
	pages = append(pages, &rekognition.GetContentModerationOutput{
		JobStatus:        types.VideoJobStatusSucceeded,
		ModerationLabels: []types.ContentModerationDetection{detection("Explicit Nudity", "", 99)},
	})
	api := &stubRekognition{pages: pages}

	status, err := newClient(t, api).GetJobStatus(context.Background(), "job-1")
	require.Nil(t, status)
	require.ErrorIs(t, err, clients.ErrTooManyPages)
	require.Len(t, api.tokens, 50)
}
