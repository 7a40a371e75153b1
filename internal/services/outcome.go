package services

import (
	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
)

// WarningStage 标识产生告警的旁路步骤。
type WarningStage string

const (
	StagePublish WarningStage = "publish"
	StageIndex   WarningStage = "index"
	StageEvent   WarningStage = "event"
	StagePresign WarningStage = "presign"
)

// Warning 记录一次被吞掉的旁路失败，不影响审核结论。
type Warning struct {
	Stage   WarningStage
	Message string
}

// Outcome 为处理单个视频的结果。
//
// Pending 表示作业仍在进行，本轮无状态变化；Skipped 表示记录已被其他实例终结。
// Warnings 汇总发布、索引、事件等 best-effort 步骤的失败。
type Outcome struct {
	Status   po.ModerationStatus
	Verdict  *po.Verdict
	Pending  bool
	Skipped  bool
	TimedOut bool
	Notified bool
	Warnings []Warning
}

// HasWarnings 报告是否存在旁路失败。
func (o Outcome) HasWarnings() bool { return len(o.Warnings) > 0 }

func (o *Outcome) warn(stage WarningStage, err error) {
	o.Warnings = append(o.Warnings, Warning{Stage: stage, Message: err.Error()})
}
