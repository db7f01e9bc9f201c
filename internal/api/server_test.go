package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/config"
	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/logbuf"
	"github.com/zrouga/CoAI-app/internal/pipeline"
	"github.com/zrouga/CoAI-app/internal/progress"
	"github.com/zrouga/CoAI-app/internal/storage/memory"
)

type stubScraper struct {
	store    intel.Store
	products []intel.Product
}

func (f *stubScraper) Scrape(ctx context.Context, req intel.ScrapeRequest) ([]intel.Product, error) {
	out := make([]intel.Product, 0, len(f.products))
	for _, p := range f.products {
		p.KeywordID = req.KeywordID
		p.DiscoveryKeyword = req.Keyword
		saved, _, err := f.store.UpsertProduct(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

type stubTraffic struct {
	visits map[string]int64
}

func (f *stubTraffic) Lookup(_ context.Context, domain string) (intel.TrafficResult, error) {
	if v, ok := f.visits[domain]; ok {
		return intel.TrafficResult{MonthlyVisits: &v, Source: "similarweb_api"}, nil
	}
	return intel.TrafficResult{Source: "no_data"}, nil
}

type apiHarness struct {
	server *Server
	store  *memory.Store
	broker *progress.Broker
	logs   *logbuf.Buffer
	svc    *pipeline.Service
}

func newAPIHarness(t *testing.T, cfg config.Config, products []intel.Product, visits map[string]int64) *apiHarness {
	t.Helper()
	store := memory.New()
	broker := progress.NewBroker(zap.NewNop())
	logs := logbuf.New()
	svc := pipeline.NewService(store,
		&stubScraper{store: store, products: products},
		&stubTraffic{visits: visits},
		pipeline.NewRegistry(), broker, logs, zap.NewNop())
	return &apiHarness{
		server: NewServer(svc, store, broker, logs, cfg, zap.NewNop()),
		store:  store,
		broker: broker,
		logs:   logs,
		svc:    svc,
	}
}

// runPipeline submits and waits for the terminal event.
func (h *apiHarness) runPipeline(t *testing.T, keyword string) {
	t.Helper()
	_, events := h.broker.Subscribe(keyword)
	_, err := h.svc.Submit(context.Background(), pipeline.RunRequest{Keyword: keyword})
	require.NoError(t, err)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type.Terminal() {
				return
			}
		case <-deadline:
			t.Fatal("pipeline did not finish")
		}
	}
}

func seedProducts(domains ...string) []intel.Product {
	out := make([]intel.Product, 0, len(domains))
	for _, d := range domains {
		name := strings.TrimSuffix(d, ".com")
		out = append(out, intel.Product{
			BrandDomain:    d,
			BrandName:      &name,
			ProductPageURL: "https://" + d + "/p",
		})
	}
	return out
}

func TestSubmitPipelineAccepted(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, seedProducts("one.com"), nil)
	body := []byte(`{"keyword":"skincare","max_ads":10}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "running_step1")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSubmitPipelineInvalid(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/run", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/pipeline/run", bytes.NewBufferString(`{"keyword":""}`))
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/pipeline/run", bytes.NewBufferString(`{"keyword":"ok","max_ads":9999}`))
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineStatus(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, seedProducts("one.com", "two.com"),
		map[string]int64{"one.com": 5000})
	h.runPipeline(t, "fitness")

	req := httptest.NewRequest(http.MethodGet, "/v1/pipeline/status/fitness", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var run pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, pipeline.StatusCompleted, run.Status)
	require.Equal(t, 2, run.Step1Products)
	require.Equal(t, 1, run.Step2Enriched)

	req = httptest.NewRequest(http.MethodGet, "/v1/pipeline/status/unknown", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeywordResultsSortedAndJoined(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{},
		seedProducts("low.com", "high.com", "none.com"),
		map[string]int64{"low.com": 1000, "high.com": 90000})
	h.runPipeline(t, "home decor")

	req := httptest.NewRequest(http.MethodGet, "/v1/results/home%20decor", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "home decor", resp.Keyword)
	require.Equal(t, 3, resp.Total)
	require.Equal(t, 1, resp.TotalPages)
	require.Len(t, resp.Products, 3)

	// Default order is monthly visits, highest first.
	require.Equal(t, "high.com", resp.Products[0].BrandDomain)
	require.NotNil(t, resp.Products[0].MonthlyVisits)
	require.Equal(t, int64(90000), *resp.Products[0].MonthlyVisits)
	require.Equal(t, "low.com", resp.Products[1].BrandDomain)
	// The no-data row still carries its source label.
	require.Equal(t, "none.com", resp.Products[2].BrandDomain)
	require.Nil(t, resp.Products[2].MonthlyVisits)
	require.NotNil(t, resp.Products[2].TrafficSource)
	require.Equal(t, "no_data", *resp.Products[2].TrafficSource)
}

func TestKeywordResultsPagination(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{},
		seedProducts("a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com"), nil)
	h.runPipeline(t, "gadgets")

	req := httptest.NewRequest(http.MethodGet,
		"/v1/results/gadgets?sort_by=brand_domain&order=asc&page=2&page_size=5", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 7, resp.Total)
	require.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Products, 2)
	require.Equal(t, "f.com", resp.Products[0].BrandDomain)
	require.Equal(t, "g.com", resp.Products[1].BrandDomain)
}

func TestKeywordResultsErrors(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/results/nothing", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/results/nothing?sort_by=bogus", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/results/nothing?page=0", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeywordLogs(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, seedProducts("one.com"), nil)
	h.runPipeline(t, "candles")

	req := httptest.NewRequest(http.MethodGet, "/v1/logs/candles?limit=5", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Starting pipeline")

	req = httptest.NewRequest(http.MethodGet, "/v1/logs/never-ran", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteKeyword(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, seedProducts("one.com"), nil)
	h.runPipeline(t, "cleanup")

	req := httptest.NewRequest(http.MethodDelete, "/v1/results/cleanup", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted":true`)

	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/results/cleanup", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBulk(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, seedProducts("one.com"), nil)
	h.runPipeline(t, "keep-one")

	body := bytes.NewBufferString(`{"keywords":["keep-one","never-ran"]}`)
	req := httptest.NewRequest(http.MethodDelete, "/v1/results", body)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Deleted  []string `json:"deleted"`
		NotFound []string `json:"not_found"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"keep-one"}, resp.Deleted)
	require.Equal(t, []string{"never-ran"}, resp.NotFound)

	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/results", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardStats(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{},
		seedProducts("one.com", "two.com"), map[string]int64{"one.com": 5000})
	h.runPipeline(t, "stats")

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp["keywords_tracked"])
	require.EqualValues(t, 2, resp["products_discovered"])
	require.EqualValues(t, 1, resp["products_with_traffic"])
	require.EqualValues(t, 0.5, resp["enrichment_rate"])
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, nil, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "sekret"}}
	h := newAPIHarness(t, cfg, nil, nil)

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "sekret")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?api_key=sekret", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamDeliversEventsUntilTerminal(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, nil, nil)
	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/stream/live%20keyword")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		// Give the handler a moment to subscribe before publishing.
		time.Sleep(50 * time.Millisecond)
		h.broker.Publish("live keyword", progress.TypePipelineStart, map[string]any{"message": "start"})
		h.broker.Publish("live keyword", progress.TypeStep1Start, map[string]any{"step": 1})
		h.broker.Publish("live keyword", progress.TypePipelineComplete, map[string]any{"message": "done"})
	}()

	var eventTypes []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventTypes = append(eventTypes, strings.TrimPrefix(line, "event: "))
		}
	}
	// The handler closes the stream after the terminal event.
	require.Equal(t, []string{"connected", "pipeline_start", "step1_start", "pipeline_complete"}, eventTypes)
}

func TestStreamLateJoinerGetsStateSync(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, config.Config{}, nil, nil)
	h.broker.Publish("already going", progress.TypePipelineStart, map[string]any{"message": "start"})
	h.broker.Publish("already going", progress.TypeStep1Start, map[string]any{"step": 1})

	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/stream/already%20going")
	require.NoError(t, err)
	defer resp.Body.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		h.broker.Publish("already going", progress.TypePipelineError, map[string]any{"error": "boom"})
	}()

	var eventTypes []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventTypes = append(eventTypes, strings.TrimPrefix(line, "event: "))
		}
	}
	require.Equal(t, []string{"connected", "state_sync", "pipeline_error"}, eventTypes)
}
