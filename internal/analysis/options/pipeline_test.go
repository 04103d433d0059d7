package options

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"optionscope/internal/metrics"
	"optionscope/internal/provider"
	"optionscope/internal/providers/polygon"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func newTestPipeline(t *testing.T, handler http.Handler) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := provider.NewRegistry()
	p := polygon.New(polygon.Config{
		BaseURL: srv.URL,
		APIKey:  func() string { return "test-key" },
		Log:     quietLogger(),
	})
	if err := reg.Register(p); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	return &Pipeline{
		Registry:       reg,
		Log:            quietLogger(),
		MaxExpirations: 10,
		Now:            fixedNow,
	}
}

func chainRow(strike float64, exp string, extra map[string]any) map[string]any {
	row := map[string]any{
		"details": map[string]any{
			"ticker":          "O:AAPL260220C00100000",
			"contract_type":   "call",
			"strike_price":    strike,
			"expiration_date": exp,
		},
		"last_quote": map[string]any{"bid": 5.0, "ask": 7.0},
	}
	for k, v := range extra {
		row[k] = v
	}
	return row
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestBuildChainEndToEnd(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot/"):
			writeJSON(t, w, map[string]any{
				"ticker": map[string]any{
					"last_trade": map[string]any{"price": 102.5},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options/"):
			writeJSON(t, w, map[string]any{
				"results": []any{
					chainRow(100, "2026-02-20", nil),
					chainRow(95, "2025-06-20", nil), // already expired
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := newTestPipeline(t, handler).BuildChain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if res.UnderlyingPrice == nil || *res.UnderlyingPrice != 102.5 {
		t.Fatalf("underlying price = %v, want 102.5", res.UnderlyingPrice)
	}
	if len(res.Expirations) != 1 || res.Expirations[0] != "2026-02-20" {
		t.Fatalf("expirations = %v", res.Expirations)
	}
	if len(res.Options) != 1 {
		t.Fatalf("got %d options, want 1", len(res.Options))
	}
	opt := res.Options[0]
	if opt.Premium != 6 || opt.Intrinsic != 2.5 || opt.Extrinsic != 3.5 {
		t.Errorf("valuation = %+v", opt)
	}
	if opt.Target2x != 112 || opt.Target3x != 118 || opt.Target4x != 124 {
		t.Errorf("targets = %v %v %v", opt.Target2x, opt.Target3x, opt.Target4x)
	}
}

func TestBuildChainSpotFallsBackToChainSnapshot(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot/"):
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options/"):
			writeJSON(t, w, map[string]any{
				"underlying_asset": map[string]any{"price": 150.0},
				"results":          []any{chainRow(100, "2026-02-20", nil)},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := newTestPipeline(t, handler).BuildChain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if res.UnderlyingPrice == nil || *res.UnderlyingPrice != 150 {
		t.Fatalf("underlying price = %v, want 150 from chain snapshot", res.UnderlyingPrice)
	}
}

func TestBuildChainSpotFallsBackToContractRow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot/"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options/"):
			writeJSON(t, w, map[string]any{
				"results": []any{
					chainRow(100, "2026-02-20", map[string]any{
						"underlying_asset": map[string]any{"last_trade": map[string]any{"price": 148.25}},
					}),
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := newTestPipeline(t, handler).BuildChain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if res.UnderlyingPrice == nil || *res.UnderlyingPrice != 148.25 {
		t.Fatalf("underlying price = %v, want 148.25 from contract row", res.UnderlyingPrice)
	}
}

func TestBuildChainDegradedWithoutSpot(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot/"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options/"):
			writeJSON(t, w, map[string]any{
				"results": []any{chainRow(100, "2026-02-20", nil)},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := newTestPipeline(t, handler).BuildChain(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if res.UnderlyingPrice != nil {
		t.Fatalf("underlying price = %v, want nil", *res.UnderlyingPrice)
	}
	if len(res.Options) != 1 {
		t.Fatalf("got %d options, want 1", len(res.Options))
	}
	if res.Options[0].Intrinsic != 0 {
		t.Errorf("intrinsic = %v, want 0 in degraded mode", res.Options[0].Intrinsic)
	}
	if res.Options[0].Extrinsic != 6 {
		t.Errorf("extrinsic = %v, want full premium", res.Options[0].Extrinsic)
	}
}

func TestBuildChainUpstreamErrorPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v2/snapshot/") {
			writeJSON(t, w, map[string]any{"price": 102.5})
			return
		}
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := newTestPipeline(t, handler).BuildChain(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error from failed chain fetch")
	}
	up, ok := err.(*provider.ErrUpstream)
	if !ok {
		t.Fatalf("expected ErrUpstream, got %T: %v", err, err)
	}
	if up.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", up.Status)
	}
}

func TestBuildChainMetrics(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/snapshot/"):
			writeJSON(t, w, map[string]any{"price": 102.5})
		case strings.HasPrefix(r.URL.Path, "/v3/snapshot/options/"):
			writeJSON(t, w, map[string]any{
				"results": []any{
					chainRow(100, "2026-02-20", nil),
					chainRow(0, "2026-02-20", nil), // bad strike, discarded
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	p := newTestPipeline(t, handler)
	p.Metrics = metrics.New()
	if _, err := p.BuildChain(context.Background(), "AAPL"); err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if got := testutil.ToFloat64(p.Metrics.ContractsValued); got != 1 {
		t.Errorf("contracts valued = %v, want 1", got)
	}
	discarded := p.Metrics.ContractsDiscarded.WithLabelValues(string(DiscardBadStrike))
	if got := testutil.ToFloat64(discarded); got != 1 {
		t.Errorf("contracts discarded = %v, want 1", got)
	}
	pages := p.Metrics.UpstreamPagesTotal.WithLabelValues("polygon")
	if got := testutil.ToFloat64(pages); got != 1 {
		t.Errorf("pages fetched = %v, want 1", got)
	}
}
