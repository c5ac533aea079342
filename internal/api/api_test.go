package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/codevox/internal/api"
	"github.com/MrWong99/codevox/internal/config"
	"github.com/MrWong99/codevox/internal/engine"
	"github.com/MrWong99/codevox/internal/health"
	"github.com/MrWong99/codevox/internal/observe"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func newServer(t *testing.T, opts ...api.Option) http.Handler {
	t.Helper()
	m, _ := newTestMetrics(t)
	e := engine.New(config.RecognitionConfig{}, engine.WithMetrics(m))
	opts = append([]api.Option{api.WithMetrics(m)}, opts...)
	return api.New(func() *engine.Engine { return e }, opts...).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type replacementJSON struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Original   string `json:"original"`
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
}

type formatJSON struct {
	Text         string            `json:"text"`
	Replacements []replacementJSON `json:"replacements"`
}

type matchJSON struct {
	Matched    bool    `json:"matched"`
	Identifier string  `json:"identifier"`
	Confidence float64 `json:"confidence"`
	Kind       string  `json:"kind"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func TestFormat(t *testing.T) {
	t.Parallel()
	h := newServer(t)

	rec := post(t, h, "/v1/format", `{"text":"please call clear pasteboard","identifiers":["clearPasteboard"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	got := decode[formatJSON](t, rec)
	if got.Text != "please call `clearPasteboard`" {
		t.Errorf("text = %q", got.Text)
	}
	want := replacementJSON{Start: 12, End: 28, Original: "clear pasteboard", Identifier: "clearPasteboard", Source: "literal"}
	if len(got.Replacements) != 1 || got.Replacements[0] != want {
		t.Errorf("replacements = %+v, want [%+v]", got.Replacements, want)
	}
}

func TestFormat_NoIdentifiers(t *testing.T) {
	t.Parallel()
	h := newServer(t)

	rec := post(t, h, "/v1/format", `{"text":"nothing to see here"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"replacements":[]`) {
		t.Errorf("body = %s, want empty replacements array", rec.Body)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	h := newServer(t)

	rec := post(t, h, "/v1/classify", `{"text":"fetchUserData() returns MAX_VALUE"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Identifiers []struct {
			Raw        string   `json:"raw"`
			Key        string   `json:"key"`
			Convention string   `json:"convention"`
			Words      []string `json:"words"`
			Score      float64  `json:"score"`
		} `json:"identifiers"`
	}](t, rec)

	if len(got.Identifiers) != 2 {
		t.Fatalf("identifiers = %+v, want 2", got.Identifiers)
	}
	first, second := got.Identifiers[0], got.Identifiers[1]
	if first.Raw != "MAX_VALUE" || first.Key != "maxvalue" || first.Convention != "SCREAMING_SNAKE_CASE" {
		t.Errorf("first = %+v", first)
	}
	if strings.Join(first.Words, " ") != "max value" {
		t.Errorf("first words = %q", first.Words)
	}
	if second.Raw != "fetchUserData" || second.Convention != "camelCase" {
		t.Errorf("second = %+v", second)
	}
	if first.Score <= second.Score {
		t.Errorf("scores not descending: %v, %v", first.Score, second.Score)
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		matched  bool
		ident    string
		kind     string
		minConf  float64
		wantCode int
	}{
		{
			name:     "exact",
			body:     `{"phrase":"user name","identifiers":["clearPasteboard","userName"]}`,
			matched:  true,
			ident:    "userName",
			kind:     "exact",
			minConf:  1,
			wantCode: http.StatusOK,
		},
		{
			name:     "fuzzy",
			body:     `{"phrase":"clear paste bord","identifiers":["clearPasteboard","userName"]}`,
			matched:  true,
			ident:    "clearPasteboard",
			kind:     "fuzzy",
			minConf:  0.9,
			wantCode: http.StatusOK,
		},
		{
			name:     "threshold override",
			body:     `{"phrase":"clear paste bord","identifiers":["clearPasteboard"],"threshold":0.99}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "no identifiers",
			body:     `{"phrase":"anything"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "threshold out of range",
			body:     `{"phrase":"x","identifiers":["y"],"threshold":2}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := post(t, newServer(t), "/v1/match", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[matchJSON](t, rec)
			if got.Matched != tt.matched || got.Identifier != tt.ident || got.Kind != tt.kind {
				t.Errorf("match = %+v, want matched=%v identifier=%q kind=%q", got, tt.matched, tt.ident, tt.kind)
			}
			if got.Confidence < tt.minConf {
				t.Errorf("confidence = %v, want >= %v", got.Confidence, tt.minConf)
			}
		})
	}
}

func TestMatch_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	e := engine.New(config.RecognitionConfig{})
	h := api.New(func() *engine.Engine { return e }, api.WithMetrics(m)).Handler()

	post(t, h, "/v1/match", `{"phrase":"user name","identifiers":["userName"]}`)
	post(t, h, "/v1/match", `{"phrase":"totally unrelated phrase","identifiers":["userName"]}`)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	kinds := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "codevox.match.attempts" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value("kind")
				kinds[v.AsString()] = dp.Value
			}
		}
	}
	if kinds["exact"] != 1 || kinds["none"] != 1 {
		t.Errorf("match attempts = %v, want exact=1 none=1", kinds)
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", "/v1/format", `{"text":`, http.StatusBadRequest, "invalid request body"},
		{"wrong type", "/v1/classify", `{"text":42}`, http.StatusBadRequest, "invalid request body"},
		{"unknown field", "/v1/match", `{"phrase":"x","ids":["y"]}`, http.StatusBadRequest, "unknown field"},
		{"empty body", "/v1/classify", ``, http.StatusBadRequest, "empty"},
		{"too large", "/v1/format", `{"text":"` + strings.Repeat("a", 64) + `"}`, http.StatusRequestEntityTooLarge, "exceeds 32 bytes"},
	}

	h := newServer(t, api.WithMaxBodyBytes(32))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := post(t, h, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			got := decode[errorJSON](t, rec)
			if !strings.Contains(got.Error, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", got.Error, tt.wantErr)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/format", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestProbesAndMetricsRoutes(t *testing.T) {
	t.Parallel()
	scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	h := newServer(t, api.WithHealth(health.New(nil)), api.WithMetricsHandler(scrape))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestEngineSwap(t *testing.T) {
	t.Parallel()
	m, _ := newTestMetrics(t)

	var current atomic.Pointer[engine.Engine]
	current.Store(engine.New(config.RecognitionConfig{}))
	h := api.New(current.Load, api.WithMetrics(m)).Handler()

	const body = `{"phrase":"clear paste bord","identifiers":["clearPasteboard"]}`
	if got := decode[matchJSON](t, post(t, h, "/v1/match", body)); !got.Matched {
		t.Fatalf("default engine should match, got %+v", got)
	}

	current.Store(engine.New(config.RecognitionConfig{MatchThreshold: 0.99}))
	if got := decode[matchJSON](t, post(t, h, "/v1/match", body)); got.Matched {
		t.Errorf("strict engine should not match, got %+v", got)
	}
}
