package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	r := RunReport{
		RunID:      "x",
		Command:    CommandExtract,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Key: "b", Status: StatusSkipped},
			{Key: "a", Status: StatusProcessed},
			{Key: "c", Status: StatusFailed, ErrorCode: ErrCodeFetchFailed},
			{Key: "d", Status: StatusDegraded, Warnings: []string{"w"}},
		},
	}

	r.Finalize()

	// items 保持处理顺序，不排序。
	assert.Equal(t, "b", r.Items[0].Key, "items 不应被重排")
	assert.Equal(t, ReportSummary{Processed: 1, Degraded: 1, Skipped: 1, Failed: 1}, r.Summary)
	assert.NotNil(t, r.Items[0].Warnings, "warnings 必须输出 [] 而不是 null")

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"started_at":"2026-02-09T02:00:00Z"`, "started_at 不是 UTC RFC3339")
	assert.Contains(t, string(b), `"warnings":[]`)
}

func TestRunReport_Finalize_EmptyItems(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"items":[]`)
}
