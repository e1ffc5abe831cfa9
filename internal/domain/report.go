package domain

import (
	"sort"
	"time"
)

const (
	StatusFetched = "fetched"
	StatusFailed  = "failed"
)

const (
	ErrCodeIndexFailed    = "index_failed"
	ErrCodeResolveFailed  = "resolve_failed"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Language string `json:"language"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary   `json:"summary"`
	Items   []GalleryResult `json:"items"`
}

type ReportSummary struct {
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
}

// GalleryResult 是单个 gallery 的处理结果。
// 成功时 Metadata 非空；失败时 ErrorCode/ErrorMsg 说明阶段与原因。
type GalleryResult struct {
	ID int32 `json:"id"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Metadata *MetadataBook `json:"metadata,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 id 降序（与索引“新者在前”的顺序一致）；id==0 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].ID
		b := r.Items[j].ID
		if a == 0 && b == 0 {
			return false
		}
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a > b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusFetched:
			s.Fetched++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}
