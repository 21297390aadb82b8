package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusDegraded  = "degraded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	CommandExtract = "extract"
	CommandCompose = "compose"
)

const (
	ErrCodeFetchFailed          = "fetch_failed"
	ErrCodeParseFailed          = "parse_failed"
	ErrCodeIOFailed             = "io_failed"
	ErrCodeGenerationFailed     = "generation_failed"
	ErrCodeThresholdUnreachable = "threshold_unreachable"
	ErrCodeConfigNotFound       = "config_not_found"
	ErrCodeConfigInvalid        = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON / report.json）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	Command string `json:"command"`
	DryRun  bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Degraded  int `json:"degraded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ItemResult 描述一条 URL（extract）或一条记录（compose）的处理结果。
type ItemResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Output string `json:"output"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Warnings []string `json:"warnings"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
//
// items 保持处理顺序（即 URL 列表 / 目录顺序），不做排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for i, it := range r.Items {
		if it.Warnings == nil {
			r.Items[i].Warnings = []string{}
		}
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusDegraded:
			s.Degraded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
