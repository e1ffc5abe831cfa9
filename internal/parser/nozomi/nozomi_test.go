package nozomi

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Project-Madome/Synchronizer/internal/domain"
	"github.com/Project-Madome/Synchronizer/internal/parser"
)

// buildIndex 生成一份“新者在前”的索引：每条记录 4 字节，首字节为 0。
func buildIndex(ids []int32) []byte {
	buf := make([]byte, 0, len(ids)*4)
	for _, id := range ids {
		var rec [4]byte
		binary.BigEndian.PutUint32(rec[:], uint32(id))
		buf = append(buf, rec[:]...)
	}
	return buf
}

// serveIndex 起一个支持 Range 的索引服务（http.ServeContent 处理 206/416）。
func serveIndex(t *testing.T, lang string, index []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index-"+lang+".nozomi" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "index.nozomi", time.Time{}, bytes.NewReader(index))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestURL(t *testing.T) {
	cases := []struct {
		language domain.Language
		want     string
	}{
		{domain.LanguageAll, "https://ltn.hitomi.la/index-all.nozomi"},
		{domain.LanguageKorean, "https://ltn.hitomi.la/index-korean.nozomi"},
		{domain.LanguageJapanese, "https://ltn.hitomi.la/index-japanese.nozomi"},
	}
	for _, c := range cases {
		n := New(1, 25, c.language, nil)
		got, err := n.URL(context.Background())
		if err != nil {
			t.Fatalf("URL 不应失败: %v", err)
		}
		if got != c.want {
			t.Fatalf("URL 期望=%q，实际=%q", c.want, got)
		}
	}
}

func TestURL_BaseURLOverride(t *testing.T) {
	n := New(1, 25, domain.LanguageAll, nil)
	n.BaseURL = "http://127.0.0.1:8080/"

	got, err := n.URL(context.Background())
	if err != nil {
		t.Fatalf("URL 不应失败: %v", err)
	}
	want := "http://127.0.0.1:8080/index-all.nozomi"
	if got != want {
		t.Fatalf("URL 期望=%q，实际=%q", want, got)
	}
}

func TestRequestParse_FirstPage(t *testing.T) {
	// 索引内 100 条记录，取第 1 页（25 条）。
	all := make([]int32, 0, 100)
	for i := int32(0); i < 100; i++ {
		all = append(all, 2_000_000-i)
	}
	ts := serveIndex(t, "korean", buildIndex(all))

	n := New(1, 25, domain.LanguageKorean, ts.Client())
	n.BaseURL = ts.URL

	next, err := n.Request(context.Background())
	if err != nil {
		t.Fatalf("期望抓取成功，实际错误=%v", err)
	}
	ids, err := next.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}

	if !reflect.DeepEqual(ids, all[:25]) {
		t.Fatalf("第 1 页期望=%v，实际=%v", all[:25], ids)
	}
}

func TestRequestParse_SecondPage(t *testing.T) {
	all := make([]int32, 0, 100)
	for i := int32(0); i < 100; i++ {
		all = append(all, 2_000_000-i)
	}
	ts := serveIndex(t, "all", buildIndex(all))

	n := New(2, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	next, err := n.Request(context.Background())
	if err != nil {
		t.Fatalf("期望抓取成功，实际错误=%v", err)
	}
	ids, err := next.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if !reflect.DeepEqual(ids, all[25:50]) {
		t.Fatalf("第 2 页期望=%v，实际=%v", all[25:50], ids)
	}
}

func TestRequestParse_TailShortPage(t *testing.T) {
	// 索引只有 30 条，第 2 页（25 条/页）只剩 5 条：短页是正常结果。
	all := make([]int32, 0, 30)
	for i := int32(0); i < 30; i++ {
		all = append(all, 1_000_000-i)
	}
	ts := serveIndex(t, "all", buildIndex(all))

	n := New(2, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	next, err := n.Request(context.Background())
	if err != nil {
		t.Fatalf("期望抓取成功，实际错误=%v", err)
	}
	ids, err := next.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if !reflect.DeepEqual(ids, all[25:]) {
		t.Fatalf("尾页期望=%v，实际=%v", all[25:], ids)
	}
}

func TestRequestParse_PageBeyondIndex(t *testing.T) {
	// 区间完全越界（服务端 416）：等价于空页，不是错误。
	all := []int32{300, 200, 100}
	ts := serveIndex(t, "all", buildIndex(all))

	n := New(5, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	next, err := n.Request(context.Background())
	if err != nil {
		t.Fatalf("越界页期望成功，实际错误=%v", err)
	}
	ids, err := next.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("越界页期望空列表，实际=%v", ids)
	}
}

func TestRequest_RangeHeader(t *testing.T) {
	var gotRange string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(buildIndex([]int32{1}))
	}))
	defer ts.Close()

	n := New(3, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	if _, err := n.Request(context.Background()); err != nil {
		t.Fatalf("期望抓取成功，实际错误=%v", err)
	}
	// 第 3 页：start = 2*25*4 = 200，end = 200+100-1 = 299。
	if gotRange != "bytes=200-299" {
		t.Fatalf("Range 期望=bytes=200-299，实际=%q", gotRange)
	}
}

func TestRequest_LeavesReceiverUnfetched(t *testing.T) {
	ts := serveIndex(t, "all", buildIndex([]int32{3, 2, 1}))

	n := New(1, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	if _, err := n.Request(context.Background()); err != nil {
		t.Fatalf("期望抓取成功，实际错误=%v", err)
	}
	if _, err := n.RawPayload(); err == nil {
		t.Fatalf("期望原实例仍为未抓取态")
	}
}

func TestRequest_HTTPStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	n := New(1, 25, domain.LanguageAll, ts.Client())
	n.BaseURL = ts.URL

	_, err := n.Request(context.Background())
	var ne *parser.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("期望 NetworkError，实际=%v", err)
	}
	if ne.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode 期望=500，实际=%d", ne.StatusCode)
	}
	if !strings.Contains(ne.URL, "/index-all.nozomi") {
		t.Fatalf("NetworkError.URL 期望包含索引路径，实际=%q", ne.URL)
	}
}

func TestParse_NotFetched(t *testing.T) {
	n := New(1, 25, domain.LanguageAll, nil)

	_, err := n.Parse()
	var nf *parser.NotFetchedError
	if !errors.As(err, &nf) {
		t.Fatalf("期望 NotFetchedError，实际=%v", err)
	}
	if nf.Parser != "nozomi" {
		t.Fatalf("Parser 期望=nozomi，实际=%q", nf.Parser)
	}
}

func TestParse_SortsDescending(t *testing.T) {
	// payload 故意乱序：Parse 必须按 id 降序输出。
	n := &Nozomi{
		payload: buildIndex([]int32{100, 300, 200}),
		fetched: true,
	}

	ids, err := n.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	want := []int32{300, 200, 100}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("降序期望=%v，实际=%v", want, ids)
	}
}

func TestParse_IgnoresFirstByte(t *testing.T) {
	// 首字节非零也不参与取值：只有后 3 字节组成 id。
	n := &Nozomi{
		payload: []byte{0xFF, 0x01, 0x02, 0x03},
		fetched: true,
	}

	ids, err := n.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	want := []int32{0x010203}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("期望=%v，实际=%v", want, ids)
	}
}

func TestParse_DropsTruncatedTail(t *testing.T) {
	full := buildIndex([]int32{500, 400})
	n := &Nozomi{
		payload: append(full, 0x00, 0x01), // 末尾残缺 2 字节
		fetched: true,
	}

	ids, err := n.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	want := []int32{500, 400}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("期望=%v，实际=%v", want, ids)
	}
}

func TestParse_EmptyPayload(t *testing.T) {
	n := &Nozomi{payload: nil, fetched: true}

	ids, err := n.Parse()
	if err != nil {
		t.Fatalf("期望解析成功，实际错误=%v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("空 payload 期望空列表，实际=%v", ids)
	}
}

func TestDecodeRecord(t *testing.T) {
	cases := []struct {
		rec  [4]byte
		want int32
	}{
		{[4]byte{0x00, 0x00, 0x00, 0x01}, 1},
		{[4]byte{0x00, 0x1A, 0x9D, 0x7C}, 1744252},
		{[4]byte{0x00, 0xFF, 0xFF, 0xFF}, 0xFFFFFF},
		{[4]byte{0x7F, 0x00, 0x00, 0x02}, 2}, // 首字节被忽略
	}
	for _, c := range cases {
		got, err := decodeRecord(c.rec, 0)
		if err != nil {
			t.Fatalf("decodeRecord(%v) 不应失败: %v", c.rec, err)
		}
		if got != c.want {
			t.Fatalf("decodeRecord(%v) 期望=%d，实际=%d", c.rec, c.want, got)
		}
	}
}
