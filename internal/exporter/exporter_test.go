package exporter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/svenstaro/site24x7-exporter/internal/auth"
	"github.com/svenstaro/site24x7-exporter/internal/metrics"
	"github.com/svenstaro/site24x7-exporter/internal/site24x7"
)

const monitorsBody = `{"data":{"monitors":[
	{"monitor_type":"URL","monitor_id":"m1","name":"edge","status":1,"attribute_value":120,"attributeName":"RESPONSETIME","unit":"ms"}
]}}`

const altMonitorsBody = `{"data":{"monitors":[
	{"monitor_type":"URL","monitor_id":"m2","name":"api","status":1,"attribute_value":250,"attributeName":"RESPONSETIME","unit":"ms"}
]}}`

const groupsBody = `{"data":[{"group_id":"g1","group_name":"production","monitors":["m1"]}]}`

const authErrorBody = `{"error_code":403,"message":"OAuth Access Token is invalid or has expired."}`

// testUpstream fakes the Zoho token endpoint and the Site24x7 API on one
// server. Tokens are issued as token-1, token-2, ... and requests carrying a
// token below minValidToken are rejected the way the real API does it.
type testUpstream struct {
	exchanges          int64
	currentStatusCalls int64
	groupCalls         int64

	minValidToken int64
	failAPI       int32
	alternate     int32

	server *httptest.Server
}

func newTestUpstream(t *testing.T) *testUpstream {
	t.Helper()
	u := &testUpstream{minValidToken: 1}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt64(&u.exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"token-`+itoa(n)+`","expires_in":3600,"token_type":"Bearer"}`)
	})
	mux.HandleFunc("/current_status", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&u.currentStatusCalls, 1)
		body := monitorsBody
		if atomic.LoadInt32(&u.alternate) != 0 && n%2 == 0 {
			body = altMonitorsBody
		}
		u.serveAPI(w, r, body, true)
	})
	mux.HandleFunc("/monitor_groups", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&u.groupCalls, 1)
		u.serveAPI(w, r, groupsBody, false)
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

// serveAPI answers an API request. Only token-checked endpoints reject old
// tokens, so a rejected fetch never races the concurrent sibling fetch in
// tests that count exact call totals.
func (u *testUpstream) serveAPI(w http.ResponseWriter, r *http.Request, body string, checkToken bool) {
	if atomic.LoadInt32(&u.failAPI) != 0 {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Zoho-oauthtoken token-")
	if checkToken && atoi(token) < atomic.LoadInt64(&u.minValidToken) {
		_, _ = io.WriteString(w, authErrorBody)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (u *testUpstream) newExporter() *Exporter {
	tokens := auth.NewManager("client-id", "client-secret", "refresh-token", u.server.URL+"/token", false, nil)
	client := site24x7.NewClient(u.server.URL, nil)
	return New(tokens, client, metrics.NewRegistry())
}

func itoa(n int64) string {
	return string(rune('0' + n))
}

func atoi(s string) int64 {
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0
	}
	return int64(s[0] - '0')
}

func scrapeFamilies(t *testing.T, e *Exporter) map[string]*dto.MetricFamily {
	t.Helper()
	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(recorder.Body)
	if err != nil {
		t.Fatalf("parse exposition output: %v", err)
	}
	return families
}

func seriesValue(families map[string]*dto.MetricFamily, name, monitorID string) (float64, bool) {
	family, ok := families[name]
	if !ok {
		return 0, false
	}
	for _, metric := range family.GetMetric() {
		matched := monitorID == ""
		for _, label := range metric.GetLabel() {
			if label.GetName() == "monitor_id" && label.GetValue() == monitorID {
				matched = true
			}
		}
		if matched {
			if metric.GetGauge() != nil {
				return metric.GetGauge().GetValue(), true
			}
			return metric.GetCounter().GetValue(), true
		}
	}
	return 0, false
}

func TestScrapePublishesSnapshot(t *testing.T) {
	upstream := newTestUpstream(t)
	e := upstream.newExporter()

	families := scrapeFamilies(t, e)

	if value, ok := seriesValue(families, "site24x7_monitor_status", "m1"); !ok || value != 1 {
		t.Fatalf("expected m1 status 1, got %v %v", value, ok)
	}
	if value, ok := seriesValue(families, "site24x7_monitor_latency_seconds", "m1"); !ok || value != 0.12 {
		t.Fatalf("expected m1 latency 0.12, got %v %v", value, ok)
	}
	if value, ok := seriesValue(families, "site24x7_scrape_success", ""); !ok || value != 1 {
		t.Fatalf("expected scrape success 1, got %v %v", value, ok)
	}
	if got := atomic.LoadInt64(&upstream.exchanges); got != 1 {
		t.Fatalf("expected 1 token exchange, got %d", got)
	}

	// group label from the concurrent group fetch
	family := families["site24x7_monitor_status"]
	var groupLabel string
	for _, label := range family.GetMetric()[0].GetLabel() {
		if label.GetName() == "monitor_group" {
			groupLabel = label.GetValue()
		}
	}
	if groupLabel != "production" {
		t.Fatalf("unexpected group label: %q", groupLabel)
	}
}

func TestRejectedTokenTriggersExactlyOneRefreshAndRetry(t *testing.T) {
	upstream := newTestUpstream(t)
	// token-1 will be rejected by the API; only token-2 works.
	atomic.StoreInt64(&upstream.minValidToken, 2)
	e := upstream.newExporter()

	families := scrapeFamilies(t, e)

	if value, ok := seriesValue(families, "site24x7_monitor_status", "m1"); !ok || value != 1 {
		t.Fatalf("expected snapshot from the retried fetch, got %v %v", value, ok)
	}
	if got := atomic.LoadInt64(&upstream.exchanges); got != 2 {
		t.Fatalf("expected exactly 2 token exchanges (initial + one refresh), got %d", got)
	}
	if got := atomic.LoadInt64(&upstream.currentStatusCalls); got != 2 {
		t.Fatalf("expected exactly one retried monitor fetch, got %d calls", got)
	}
	if value, ok := seriesValue(families, "site24x7_scrape_success", ""); !ok || value != 1 {
		t.Fatalf("expected scrape success after retry, got %v %v", value, ok)
	}
}

func exportedIDs(families map[string]*dto.MetricFamily, name string) []string {
	var ids []string
	for _, metric := range families[name].GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "monitor_id" {
				ids = append(ids, label.GetValue())
			}
		}
	}
	return ids
}

// Concurrent scrapes racing pipeline runs that rewrite the registry must each
// get a complete, internally consistent exposition body. A response showing
// one monitor set in the status family and another in the latency family, or
// no series at all, means a reader caught an update mid-rebuild.
func TestConcurrentScrapesSeeWholeSnapshots(t *testing.T) {
	upstream := newTestUpstream(t)
	atomic.StoreInt32(&upstream.alternate, 1)
	e := upstream.newExporter()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				recorder := httptest.NewRecorder()
				e.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				if recorder.Code != http.StatusOK {
					t.Errorf("unexpected status: %d", recorder.Code)
					return
				}
				if recorder.Body.Len() == 0 {
					t.Error("empty exposition body")
					return
				}
				parser := expfmt.TextParser{}
				families, err := parser.TextToMetricFamilies(recorder.Body)
				if err != nil {
					t.Errorf("parse exposition output: %v", err)
					return
				}
				statusIDs := exportedIDs(families, "site24x7_monitor_status")
				latencyIDs := exportedIDs(families, "site24x7_monitor_latency_seconds")
				if len(statusIDs) != 1 || len(latencyIDs) != 1 || statusIDs[0] != latencyIDs[0] {
					t.Errorf("torn snapshot: status ids %v, latency ids %v", statusIDs, latencyIDs)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFailedScrapeServesPreviousSnapshot(t *testing.T) {
	upstream := newTestUpstream(t)
	e := upstream.newExporter()

	families := scrapeFamilies(t, e)
	if value, ok := seriesValue(families, "site24x7_monitor_latency_seconds", "m1"); !ok || value != 0.12 {
		t.Fatalf("expected initial snapshot, got %v %v", value, ok)
	}

	atomic.StoreInt32(&upstream.failAPI, 1)
	families = scrapeFamilies(t, e)

	// Stale but present, with an explicit error signal.
	if value, ok := seriesValue(families, "site24x7_monitor_latency_seconds", "m1"); !ok || value != 0.12 {
		t.Fatalf("previous snapshot not served: %v %v", value, ok)
	}
	if value, ok := seriesValue(families, "site24x7_scrape_errors_total", ""); !ok || value != 1 {
		t.Fatalf("expected 1 scrape error, got %v %v", value, ok)
	}
	if value, ok := seriesValue(families, "site24x7_scrape_success", ""); !ok || value != 0 {
		t.Fatalf("expected scrape success 0, got %v %v", value, ok)
	}
}
