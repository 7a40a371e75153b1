package services

import (
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-moderation/internal/models/po"
)

// PolicyConfig 为判定阈值与类目配置。
type PolicyConfig struct {
	RejectThreshold  float64
	FlagThreshold    float64
	RejectCategories []string
	FlagCategories   []string
}

// Evaluator 把审核标签转换为 PASS/FLAG/REJECT 结论。无 I/O，可并发调用。
type Evaluator struct {
	rejectThreshold float64
	flagThreshold   float64
	reject          map[string]struct{}
	flag            map[string]struct{}
}

// NewEvaluator 创建 Evaluator，类目按大小写不敏感匹配。
func NewEvaluator(cfg PolicyConfig) *Evaluator {
	return &Evaluator{
		rejectThreshold: cfg.RejectThreshold,
		flagThreshold:   cfg.FlagThreshold,
		reject:          categorySet(cfg.RejectCategories),
		flag:            categorySet(cfg.FlagCategories),
	}
}

// Evaluate 按输入顺序扫描标签。
//
// 规则：
//   - 空输入直接 PASS，置信度 1.0
//   - 首个达到拒绝阈值的拒绝类目标签立即返回 REJECT，只携带该标签的理由，之前累积的理由被丢弃
//   - 其余情况累积理由，最后按 maxConfidence 与理由数量决定 REJECT/FLAG/PASS
func (e *Evaluator) Evaluate(labels []po.ModerationLabel) po.Verdict {
	if len(labels) == 0 {
		return po.Verdict{Decision: po.DecisionPass, Confidence: 1.0, Reasons: []string{}}
	}

	var maxConfidence float64
	reasons := []string{}
	for _, label := range labels {
		if label.Confidence > maxConfidence {
			maxConfidence = label.Confidence
		}
		isReject := e.matches(e.reject, label)
		isFlag := e.matches(e.flag, label)

		if isReject && label.Confidence >= e.rejectThreshold {
			return po.Verdict{
				Decision:   po.DecisionReject,
				Confidence: label.Confidence,
				Reasons:    []string{fmt.Sprintf("Content rejected: %s detected with %s confidence", label.Name, percent(label.Confidence))},
			}
		}
		if isReject && label.Confidence >= e.flagThreshold {
			reasons = append(reasons, fmt.Sprintf("Potentially inappropriate content: %s (%s)", label.Name, percent(label.Confidence)))
		}
		if isFlag && label.Confidence >= e.flagThreshold {
			reasons = append(reasons, fmt.Sprintf("Flagged for review: %s (%s)", label.Name, percent(label.Confidence)))
		}
	}

	switch {
	case maxConfidence >= e.rejectThreshold && len(reasons) > 0:
		return po.Verdict{Decision: po.DecisionReject, Confidence: maxConfidence, Reasons: reasons}
	case maxConfidence >= e.flagThreshold || len(reasons) > 0:
		return po.Verdict{Decision: po.DecisionFlag, Confidence: maxConfidence, Reasons: reasons}
	default:
		// PASS 的置信度表达“内容安全”的把握
		return po.Verdict{Decision: po.DecisionPass, Confidence: 1 - maxConfidence, Reasons: reasons}
	}
}

func (e *Evaluator) matches(set map[string]struct{}, label po.ModerationLabel) bool {
	if _, ok := set[normalizeCategory(label.Name)]; ok {
		return true
	}
	if label.ParentCategory == "" {
		return false
	}
	_, ok := set[normalizeCategory(label.ParentCategory)]
	return ok
}

func categorySet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if key := normalizeCategory(v); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func normalizeCategory(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func percent(confidence float64) string {
	return fmt.Sprintf("%.1f%%", confidence*100)
}
