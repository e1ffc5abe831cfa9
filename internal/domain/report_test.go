package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFinalize_SortsByIDDescending(t *testing.T) {
	rr := RunReport{
		Items: []GalleryResult{
			{ID: 100, Status: StatusFetched},
			{ID: 0, Status: StatusFailed, ErrorCode: ErrCodeIndexFailed}, // 合成条目
			{ID: 300, Status: StatusFailed, ErrorCode: ErrCodeFetchFailed},
			{ID: 200, Status: StatusFetched},
		},
	}
	rr.Finalize()

	wantOrder := []int32{300, 200, 100, 0}
	for i, want := range wantOrder {
		if rr.Items[i].ID != want {
			t.Fatalf("位置 %d 期望 id=%d，实际=%d", i, want, rr.Items[i].ID)
		}
	}
}

func TestFinalize_ComputesSummary(t *testing.T) {
	rr := RunReport{
		Items: []GalleryResult{
			{ID: 3, Status: StatusFetched},
			{ID: 2, Status: StatusFailed, ErrorCode: ErrCodeParseFailed},
			{ID: 1, Status: StatusFetched},
		},
	}
	rr.Finalize()

	if rr.Summary.Fetched != 2 || rr.Summary.Failed != 1 {
		t.Fatalf("summary 期望 fetched=2 failed=1，实际 fetched=%d failed=%d",
			rr.Summary.Fetched, rr.Summary.Failed)
	}
}

func TestFinalize_NormalizesTimesToUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	rr := RunReport{
		StartedAt:  time.Date(2020, 11, 2, 20, 0, 0, 0, loc),
		FinishedAt: time.Date(2020, 11, 2, 20, 5, 0, 0, loc),
	}
	rr.Finalize()

	if rr.StartedAt.Location() != time.UTC {
		t.Fatalf("StartedAt 期望 UTC，实际=%v", rr.StartedAt.Location())
	}

	b, err := json.Marshal(rr)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if !strings.Contains(string(b), "2020-11-02T11:00:00Z") {
		t.Fatalf("期望 RFC3339 UTC 时间戳，实际=%s", b)
	}
}

func TestGalleryResultJSON_OmitsEmptyFields(t *testing.T) {
	ok := GalleryResult{ID: 1744332, Status: StatusFetched, Metadata: &MetadataBook{Groups: []string{"haniya"}}}
	b, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "error_code") || strings.Contains(s, "error_msg") {
		t.Fatalf("成功条目不应带错误字段，实际=%s", s)
	}
	if strings.Contains(s, "characters") {
		t.Fatalf("缺失的 Characters 不应出现在 JSON 中，实际=%s", s)
	}

	failed := GalleryResult{ID: 1, Status: StatusFailed, ErrorCode: ErrCodeResolveFailed, ErrorMsg: "x"}
	b, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if strings.Contains(string(b), "metadata") {
		t.Fatalf("失败条目不应带 metadata 字段，实际=%s", b)
	}
}
