package main

import (
	"reflect"
	"testing"

	"github.com/Project-Madome/Synchronizer/internal/domain"
)

func TestParseRunArgs_AllFlags(t *testing.T) {
	ra, err := parseRunArgs([]string{
		"--language", "korean",
		"--page", "3",
		"--per-page", "50",
		"--concurrency", "8",
	})
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if ra.Language != "korean" || !ra.LanguageSet {
		t.Fatalf("language 不符: %+v", ra)
	}
	if ra.Page != 3 || !ra.PageSet {
		t.Fatalf("page 不符: %+v", ra)
	}
	if ra.PerPage != 50 || !ra.PerPageSet {
		t.Fatalf("per-page 不符: %+v", ra)
	}
	if ra.Concurrency != 8 || !ra.ConcurrencySet {
		t.Fatalf("concurrency 不符: %+v", ra)
	}
}

func TestParseRunArgs_EqualsForm(t *testing.T) {
	ra, err := parseRunArgs([]string{"--language=japanese", "--page=2", "--ids=3,1,2"})
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if ra.Language != "japanese" || ra.Page != 2 {
		t.Fatalf("解析结果不符: %+v", ra)
	}
	if !reflect.DeepEqual(ra.IDs, []int32{3, 1, 2}) {
		t.Fatalf("ids 期望=[3 1 2]，实际=%v", ra.IDs)
	}
}

func TestParseRunArgs_Empty(t *testing.T) {
	ra, err := parseRunArgs(nil)
	if err != nil {
		t.Fatalf("无参数应成功，实际错误=%v", err)
	}
	if ra.LanguageSet || ra.PageSet || ra.PerPageSet || ra.ConcurrencySet || ra.IDs != nil {
		t.Fatalf("无参数时不应有任何 Set 标记: %+v", ra)
	}
}

func TestParseRunArgs_Errors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"--page"}},
		{"unknown language", []string{"--language", "klingon"}},
		{"zero page", []string{"--page", "0"}},
		{"non-numeric per-page", []string{"--per-page", "abc"}},
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"unknown flag", []string{"--verbose"}},
		{"stray positional", []string{"korean"}},
		{"empty ids", []string{"--ids", ","}},
		{"negative id", []string{"--ids", "1,-2"}},
		{"id overflow", []string{"--ids", "4294967296"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := parseRunArgs(c.args); err == nil {
				t.Fatalf("期望解析失败: %v", c.args)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 1744332 , 1744252 ,, 7 ")
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	want := []int32{1744332, 1744252, 7}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids 期望=%v，实际=%v", want, ids)
	}
}

func TestReportForConfigError(t *testing.T) {
	rr := reportForConfigError(runArgs{Language: "korean", Page: 1, PerPage: 25}, errTest{})

	if len(rr.Items) != 1 {
		t.Fatalf("期望恰好 1 条合成条目，实际=%d", len(rr.Items))
	}
	it := rr.Items[0]
	if it.ID != 0 || it.Status != domain.StatusFailed {
		t.Fatalf("合成条目不符: %+v", it)
	}
	if it.ErrorCode != domain.ErrCodeConfigInvalid {
		t.Fatalf("error_code 期望=%s，实际=%s", domain.ErrCodeConfigInvalid, it.ErrorCode)
	}
	if rr.Summary.Failed != 1 {
		t.Fatalf("summary 期望 failed=1，实际=%+v", rr.Summary)
	}
}

type errTest struct{}

func (errTest) Error() string { return "配置读取失败" }
