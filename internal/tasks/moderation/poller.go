// Package moderation 周期性查询待审核视频的作业状态并驱动状态迁移。
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
	"github.com/bionicotaku/lingo-services-moderation/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lingo-services-moderation.poller"

const (
	defaultInterval    = 30 * time.Second
	defaultBatchSize   = 10
	defaultRejectGrace = 10 * time.Second
)

// Config 控制轮询节奏。CallTimeout 为单个视频处理的上限，0 表示不限制。
type Config struct {
	Interval    time.Duration
	BatchSize   int
	ItemDelay   time.Duration
	CallTimeout time.Duration
}

// Processor 为轮询器依赖的服务层能力。
type Processor interface {
	ListPending(ctx context.Context, limit int) ([]*po.Video, error)
	ProcessVideo(ctx context.Context, video *po.Video) (services.Outcome, error)
	RejectWithError(ctx context.Context, video *po.Video, cause error) (services.Outcome, error)
}

// TickStats 汇总一轮轮询。
type TickStats struct {
	Checked   int
	Completed int
	Pending   int
	Skipped   int
	Failed    int
}

// Poller 顺序处理每批待审核视频，单个视频的异常不会中断整轮。
type Poller struct {
	proc    Processor
	cfg     Config
	log     *log.Helper
	metrics *pollerMetrics
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPoller 创建 Poller。
func NewPoller(proc Processor, cfg Config, logger log.Logger, meter metric.Meter) (*Poller, error) {
	if proc == nil {
		return nil, errors.New("moderation poller: processor is required")
	}
	helper := log.NewHelper(logger)
	return &Poller{
		proc:    proc,
		cfg:     sanitizeConfig(cfg),
		log:     helper,
		metrics: newPollerMetrics(meter, helper),
		tracer:  otel.Tracer(tracerName),
		sleep:   sleepCtx,
	}, nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	if cfg.CallTimeout < 0 {
		cfg.CallTimeout = 0
	}
	return cfg
}

// Run 立即执行一轮，之后按 Interval 重复，直到 ctx 取消。
func (p *Poller) Run(ctx context.Context) error {
	p.log.Infof("moderation: poller started: interval=%s batch=%d item_delay=%s", p.cfg.Interval, p.cfg.BatchSize, p.cfg.ItemDelay)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.WithContext(ctx).Errorf("moderation: tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			p.log.Info("moderation: poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce 处理一批 pending 视频。
func (p *Poller) RunOnce(ctx context.Context) (TickStats, error) {
	var stats TickStats
	ctx, span := p.tracer.Start(ctx, "moderation.poll")
	start := time.Now()
	defer func() {
		p.metrics.recordTick(ctx, time.Since(start))
		span.SetAttributes(attribute.Int("moderation.checked", stats.Checked), attribute.Int("moderation.failed", stats.Failed))
		span.End()
	}()

	videos, err := p.proc.ListPending(ctx, p.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list pending")
		return stats, fmt.Errorf("list pending: %w", err)
	}
	for i, video := range videos {
		if i > 0 && p.cfg.ItemDelay > 0 {
			if err := p.sleep(ctx, p.cfg.ItemDelay); err != nil {
				return stats, nil
			}
		}
		if ctx.Err() != nil {
			return stats, nil
		}
		stats.Checked++
		p.metrics.recordChecked(ctx)

		out, err := p.processOne(ctx, video)
		switch {
		case err != nil:
			stats.Failed++
			p.fail(ctx, video, err)
		case out.Pending:
			stats.Pending++
		case out.Skipped:
			stats.Skipped++
		default:
			stats.Completed++
			p.metrics.recordVerdict(ctx, out.Status)
			for _, w := range out.Warnings {
				p.metrics.recordWarning(ctx, w.Stage)
			}
		}
	}
	if stats.Checked > 0 {
		p.log.WithContext(ctx).Infof("moderation: tick done: checked=%d completed=%d pending=%d skipped=%d failed=%d",
			stats.Checked, stats.Completed, stats.Pending, stats.Skipped, stats.Failed)
	}
	return stats, nil
}

// processOne 带超时执行，并把 panic 转为错误。
func (p *Poller) processOne(ctx context.Context, video *po.Video) (out services.Outcome, err error) {
	ctx, span := p.tracer.Start(ctx, "moderation.process_video", trace.WithAttributes(attribute.String("video.id", video.ID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "process video")
		} else {
			span.SetAttributes(attribute.String("moderation.status", string(out.Status)))
		}
		span.End()
	}()
	itemCtx := ctx
	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.proc.ProcessVideo(itemCtx, video)
}

// fail 把视频强制置为 rejected 并记录原因；关停中也尽量完成写入。
func (p *Poller) fail(ctx context.Context, video *po.Video, cause error) {
	p.metrics.recordFailure(ctx)
	if ctx.Err() != nil {
		// 关停导致的失败不代表视频有问题，留给下一次启动。
		p.log.WithContext(ctx).Warnf("moderation: processing interrupted: video_id=%s err=%v", video.ID, cause)
		return
	}
	p.log.WithContext(ctx).Errorf("moderation: processing failed, rejecting: video_id=%s err=%v", video.ID, cause)

	rejectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRejectGrace)
	defer cancel()
	out, err := p.proc.RejectWithError(rejectCtx, video, cause)
	if err != nil {
		p.log.WithContext(ctx).Errorf("moderation: reject after failure: video_id=%s err=%v", video.ID, err)
		return
	}
	if !out.Skipped {
		p.metrics.recordVerdict(ctx, out.Status)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type pollerMetrics struct {
	checked  metric.Int64Counter
	verdicts metric.Int64Counter
	failures metric.Int64Counter
	warnings metric.Int64Counter
	tickMs   metric.Float64Histogram
	enabled  bool
}

const (
	metricNameChecked  = "moderation_jobs_checked_total"
	metricNameVerdict  = "moderation_verdict_total"
	metricNameFailures = "moderation_item_failures_total"
	metricNameWarnings = "moderation_side_effect_warnings_total"
	metricNameTick     = "moderation_tick_duration_ms"
)

func newPollerMetrics(meter metric.Meter, helper *log.Helper) *pollerMetrics {
	m := &pollerMetrics{}
	if meter == nil {
		return m
	}
	var err error
	if m.checked, err = meter.Int64Counter(metricNameChecked,
		metric.WithDescription("Number of pending videos whose job status was checked")); err != nil {
		helper.Warnf("moderation metrics: register checked counter: %v", err)
		return m
	}
	if m.verdicts, err = meter.Int64Counter(metricNameVerdict,
		metric.WithDescription("Terminal moderation transitions by status")); err != nil {
		helper.Warnf("moderation metrics: register verdict counter: %v", err)
		return m
	}
	if m.failures, err = meter.Int64Counter(metricNameFailures,
		metric.WithDescription("Videos whose processing raised an error")); err != nil {
		helper.Warnf("moderation metrics: register failure counter: %v", err)
		return m
	}
	if m.warnings, err = meter.Int64Counter(metricNameWarnings,
		metric.WithDescription("Best-effort side effects that failed")); err != nil {
		helper.Warnf("moderation metrics: register warning counter: %v", err)
		return m
	}
	if m.tickMs, err = meter.Float64Histogram(metricNameTick,
		metric.WithDescription("Duration of one poll tick"), metric.WithUnit("ms")); err != nil {
		helper.Warnf("moderation metrics: register tick histogram: %v", err)
		return m
	}
	m.enabled = true
	return m
}

func (m *pollerMetrics) recordChecked(ctx context.Context) {
	if m == nil || !m.enabled {
		return
	}
	m.checked.Add(ctx, 1)
}

func (m *pollerMetrics) recordVerdict(ctx context.Context, status po.ModerationStatus) {
	if m == nil || !m.enabled {
		return
	}
	m.verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (m *pollerMetrics) recordFailure(ctx context.Context) {
	if m == nil || !m.enabled {
		return
	}
	m.failures.Add(ctx, 1)
}

func (m *pollerMetrics) recordWarning(ctx context.Context, stage services.WarningStage) {
	if m == nil || !m.enabled {
		return
	}
	m.warnings.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (m *pollerMetrics) recordTick(ctx context.Context, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.tickMs.Record(context.WithoutCancel(ctx), float64(d.Milliseconds()))
}
