package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

const listing = `<html><body>
<table id="list">
  <tr class="baseList"><td class="title"><a href="/zboard/view.php?id=ppomppu&no=501">모니모 <b>적립</b> 이벤트</a></td><td class="date">24/10/01</td></tr>
  <tr class="baseList"><td class="title"><a href="/zboard/view.php?id=ppomppu&no=500">Older &amp; wiser</a></td><td class="date">24/09/30</td></tr>
  <tr class="baseList"><td class="title"><a href="/zboard/view.php?id=ppomppu&no=500">duplicate row</a></td></tr>
  <tr class="notice"><td class="title"><a href="/notice">notice</a></td></tr>
</table>
</body></html>`

func feedSource(url string) domain.MonitoredSource {
	return domain.MonitoredSource{
		ID:      "ppomppu",
		Kind:    domain.KindItemFeed,
		Keyword: "모니모",
		Fetch: domain.FetchSpec{
			Type:          domain.FetchHTML,
			URL:           url,
			ItemSelector:  "tr.baseList",
			TitleSelector: "td.title a",
			LinkSelector:  "td.title a",
			DateSelector:  "td.date",
		},
	}
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTMLFeed_ParsesItemsNewestFirst(t *testing.T) {
	srv := serve(t, 200, listing)
	f := &HTMLFeed{Client: NewClient(time.Second)}

	obs := f.Fetch(context.Background(), feedSource(srv.URL+"/search?keyword={keyword}"))
	feed, ok := obs.(domain.FeedObservation)
	if !ok {
		t.Fatalf("want FeedObservation, got %#v", obs)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("want 2 unique items, got %d: %+v", len(feed.Items), feed.Items)
	}
	first := feed.Items[0]
	if first.ID != "501" || first.Title != "모니모 적립 이벤트" || first.Date != "24/10/01" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if !strings.HasPrefix(first.Link, srv.URL+"/zboard/view.php") {
		t.Fatalf("link not resolved against page: %q", first.Link)
	}
	if feed.Items[1].Title != "Older & wiser" {
		t.Fatalf("entity not decoded: %q", feed.Items[1].Title)
	}
}

func TestHTMLFeed_EmptyListingIsNotAFailure(t *testing.T) {
	srv := serve(t, 200, `<html><body><p>검색 결과가 없습니다</p></body></html>`)
	f := &HTMLFeed{Client: NewClient(time.Second)}

	obs := f.Fetch(context.Background(), feedSource(srv.URL))
	feed, ok := obs.(domain.FeedObservation)
	if !ok || len(feed.Items) != 0 {
		t.Fatalf("want empty feed observation, got %#v", obs)
	}
}

var naverMarkers = []string{"자동입력 방지", "보안문자", "nhncaptcha"}

func TestClient_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   domain.FailureKind
		is     error
	}{
		{"captcha page", 200, `<div>자동입력 방지를 위해 보안문자를 입력해 주세요</div>`, domain.FailureBlocked, domain.ErrBlocked},
		{"forbidden", 403, "nope", domain.FailureBlocked, domain.ErrBlocked},
		{"too many requests", 429, "slow down", domain.FailureBlocked, domain.ErrBlocked},
		{"server error", 500, "boom", domain.FailureHTTP, domain.ErrFetch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := serve(t, c.status, c.body)
			f := &HTMLFeed{Client: NewClient(time.Second)}
			src := feedSource(srv.URL)
			src.Fetch.CaptchaMarkers = naverMarkers
			obs := f.Fetch(context.Background(), src)
			ff, ok := obs.(*domain.FetchFailure)
			if !ok {
				t.Fatalf("want failure, got %#v", obs)
			}
			if ff.Kind != c.want {
				t.Fatalf("kind = %s, want %s", ff.Kind, c.want)
			}
			if !errors.Is(ff, c.is) {
				t.Fatalf("errors.Is(%v, %v) = false", ff, c.is)
			}
		})
	}
}

func TestHTMLFeed_ReCaptchaScriptIsNotABlock(t *testing.T) {
	page := `<html><head><script src="https://www.google.com/recaptcha/api.js"></script></head><body>
<table>
<tr class="baseList"><td class="title"><a href="/view?no=2">Second</a></td><td class="date">24/10/01</td></tr>
<tr class="baseList"><td class="title"><a href="/view?no=1">First</a></td><td class="date">24/10/01</td></tr>
</table></body></html>`
	srv := serve(t, 200, page)
	f := &HTMLFeed{Client: NewClient(time.Second)}

	for _, markers := range [][]string{nil, naverMarkers} {
		src := feedSource(srv.URL)
		src.Fetch.CaptchaMarkers = markers
		obs := f.Fetch(context.Background(), src)
		feed, ok := obs.(domain.FeedObservation)
		if !ok || len(feed.Items) != 2 {
			t.Fatalf("markers %v: ordinary page gave %#v", markers, obs)
		}
	}
}

func TestBlockedMarker_OnlyConfiguredAndCaseSensitive(t *testing.T) {
	if m := BlockedMarker("보안문자를 입력하세요", nil); m != "" {
		t.Fatalf("unconfigured source matched %q", m)
	}
	if m := BlockedMarker("보안문자를 입력하세요", naverMarkers); m != "보안문자" {
		t.Fatalf("got %q", m)
	}
	if m := BlockedMarker("NHNCAPTCHA", naverMarkers); m != "" {
		t.Fatalf("case-insensitive match %q", m)
	}
}

func TestClient_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	src := feedSource(srv.URL)
	src.Fetch.Timeout = 50 * time.Millisecond
	obs := (&HTMLFeed{Client: NewClient(time.Second)}).Fetch(context.Background(), src)
	ff, ok := obs.(*domain.FetchFailure)
	if !ok || ff.Kind != domain.FailureTimeout {
		t.Fatalf("want timeout failure, got %#v", obs)
	}
}

func TestSearchAPI_StripsMarkupAndSkipsMarkerCheck(t *testing.T) {
	body := `{"total":2,"items":[
	  {"title":"<b>모니모</b> captcha 후기","link":"https://blog.naver.com/someone/223000000001","description":"a &amp; b","bloggername":"someone","postdate":"20241001"},
	  {"title":"두번째","link":"https://cafe.naver.com/x?articleid=77","description":"","cafename":"카페","postdate":"20240930"}
	]}`
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Naver-Client-Id")
		if r.URL.Query().Get("query") != "모니모" {
			t.Errorf("query = %q", r.URL.Query().Get("query"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src := domain.MonitoredSource{
		ID:      "naver-blog",
		Kind:    domain.KindItemFeed,
		Keyword: "모니모",
		Fetch: domain.FetchSpec{
			Type:    domain.FetchSearchAPI,
			URL:     srv.URL + "/v1/search/blog.json?query={keyword}&sort=date",
			Headers: map[string]string{"X-Naver-Client-Id": "cid"},
		},
	}
	obs := NewRegistry(NewClient(time.Second)).Fetch(context.Background(), src)
	feed, ok := obs.(domain.FeedObservation)
	if !ok {
		t.Fatalf("want feed, got %#v", obs)
	}
	if gotHeader != "cid" {
		t.Fatalf("configured header not sent")
	}
	if len(feed.Items) != 2 {
		t.Fatalf("want 2 items, got %+v", feed.Items)
	}
	a, b := feed.Items[0], feed.Items[1]
	if a.Title != "모니모 captcha 후기" || a.Description != "a & b" || a.ID != "223000000001" || a.Author != "someone" {
		t.Fatalf("first item = %+v", a)
	}
	if b.ID != "77" || b.Author != "카페" {
		t.Fatalf("second item = %+v", b)
	}
}

func TestParseSearch_BadShapeIsParseError(t *testing.T) {
	if _, err := ParseSearch([]byte(`{"result":[]}`), domain.FetchSpec{}, nil); err == nil {
		t.Fatalf("expected missing path error")
	}
	if _, err := ParseSearch([]byte(`not json`), domain.FetchSpec{}, nil); err == nil {
		t.Fatalf("expected decode error")
	}
	items, err := ParseSearch([]byte(`{"data":{"rows":[{"title":"x","link":"https://e.com/a"}]}}`), domain.FetchSpec{ItemsPath: "data.rows"}, nil)
	if err != nil || len(items) != 1 {
		t.Fatalf("nested path: %v %+v", err, items)
	}
}

const rateBoard = `<html><body>
<ul class="rates">
  <li class="rate"><span class="name">미국 USD</span><span class="value"> 1,387.50 </span></li>
  <li class="rate"><span class="name">일본 JPY (100엔)</span><span class="value">912.44</span></li>
</ul>
</body></html>`

func TestScalarBoard_ReadsTargetsIndependently(t *testing.T) {
	srv := serve(t, 200, rateBoard)
	src := domain.MonitoredSource{
		ID:    "currency",
		Kind:  domain.KindScalarRate,
		Fetch: domain.FetchSpec{Type: domain.FetchHTML, URL: srv.URL},
		Targets: []domain.ScalarTarget{
			{ID: "USD_KRW", Name: "USD", ItemSelector: "li.rate", LabelSelector: ".name", Match: []string{"usd"}, ValueSelector: ".value"},
			{ID: "JPY_KRW", Name: "JPY", ItemSelector: "li.rate", LabelSelector: ".name", Match: []string{"JPY"}, ValueSelector: ".value"},
			{ID: "EUR_KRW", Name: "EUR", ItemSelector: "li.rate", LabelSelector: ".name", Match: []string{"EUR"}, ValueSelector: ".value"},
		},
	}
	obs := NewRegistry(NewClient(time.Second)).Fetch(context.Background(), src)
	sc, ok := obs.(domain.ScalarObservation)
	if !ok {
		t.Fatalf("want scalar observation, got %#v", obs)
	}
	if len(sc.Readings) != 3 {
		t.Fatalf("want 3 readings, got %+v", sc.Readings)
	}
	if sc.Readings[0].Value != "1,387.50" || !sc.Readings[0].OK() {
		t.Fatalf("usd = %+v", sc.Readings[0])
	}
	if sc.Readings[1].Value != "912.44" {
		t.Fatalf("jpy = %+v", sc.Readings[1])
	}
	if sc.Readings[2].OK() {
		t.Fatalf("eur should have failed: %+v", sc.Readings[2])
	}
}

func TestScalarBoard_AllTargetsMissingIsParseFailure(t *testing.T) {
	srv := serve(t, 200, `<html><body>maintenance</body></html>`)
	src := domain.MonitoredSource{
		ID:      "gold",
		Kind:    domain.KindScalarRate,
		Fetch:   domain.FetchSpec{URL: srv.URL},
		Targets: []domain.ScalarTarget{{ID: "GOLD", ItemSelector: "li", Match: []string{"금"}, ValueSelector: ".v"}},
	}
	obs := (&ScalarBoard{Client: NewClient(time.Second)}).Fetch(context.Background(), src)
	ff, ok := obs.(*domain.FetchFailure)
	if !ok || !errors.Is(ff, domain.ErrParse) {
		t.Fatalf("want parse failure, got %#v", obs)
	}
}

func TestRegistry_UnknownKindFails(t *testing.T) {
	obs := NewRegistry(NewClient(time.Second)).Fetch(context.Background(), domain.MonitoredSource{ID: "x", Kind: domain.KindRESTHealthcheck})
	if _, ok := obs.(*domain.FetchFailure); !ok {
		t.Fatalf("want failure, got %#v", obs)
	}
}

func TestItemID(t *testing.T) {
	cases := map[string]string{
		"https://www.ppomppu.co.kr/zboard/view.php?id=ppomppu&no=12345": "12345",
		"https://blog.naver.com/PostView.naver?blogId=a&logNo=2233":     "2233",
		"https://cafe.naver.com/abc?ArticleId=99":                       "99",
		"https://n.news.naver.com/mnews/article/001/0014":               "001_0014",
		"https://blog.naver.com/someone/223000000001":                   "223000000001",
	}
	for link, want := range cases {
		if got := ItemID(link, nil); got != want {
			t.Fatalf("ItemID(%q) = %q, want %q", link, got, want)
		}
	}
	h := ItemID("https://example.com/post/slug", nil)
	if len(h) != 20 || h != ItemID("https://example.com/post/slug", nil) {
		t.Fatalf("hash id not stable: %q", h)
	}
	if ItemID("", nil) != "" {
		t.Fatalf("empty link should give empty id")
	}
}
