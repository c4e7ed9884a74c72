package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/detach"
	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/infrastructure/cache"
	"disasterwatch/internal/infrastructure/persistence/model"
	"disasterwatch/internal/infrastructure/persistence/repository"
	"disasterwatch/internal/infrastructure/persistence/uow"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/usecase/disasters"
)

type stubEnricher struct {
	mu       sync.Mutex
	extracts int
	filters  int
}

func (e *stubEnricher) ExtractLocation(context.Context, string, string, string) (disaster.GeoLocation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extracts++
	return disaster.GeoLocation{Geocode: "SRID=4326;POINT(-74.006 40.7128)", Name: "Manhattan, NYC", Lat: 40.7128, Lon: -74.006}, nil
}

func (e *stubEnricher) BuildQuery(context.Context, string, string, string, []string) (string, error) {
	return "manhattan flood", nil
}

func (e *stubEnricher) FilterPosts(context.Context, string, string, string, []string, []json.RawMessage) ([]disaster.Post, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters++
	return nil, nil
}

type emptyFeed struct{}

func (emptyFeed) FetchPosts(context.Context, string) ([]json.RawMessage, error) {
	return []json.RawMessage{}, nil
}

type testAPI struct {
	srv      *httptest.Server
	db       *gorm.DB
	enricher *stubEnricher
	group    *detach.Group
}

func newTestAPI(t *testing.T, mutate func(*config.HTTPConfig)) *testAPI {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	cfg := config.HTTPConfig{MaxBodyBytes: 10 << 20, AllowedOrigins: []string{"*"}}
	if mutate != nil {
		mutate(&cfg)
	}

	group := detach.NewGroup()
	enricher := &stubEnricher{}
	metrics := observability.NewMetricsForTesting()
	svc := disasters.NewService(disasters.Deps{
		Disasters:  repository.NewDisasterRepository(db),
		Resources:  repository.NewResourceRepository(db),
		UoW:        uow.NewUnitOfWork(db),
		Cache:      cache.NewStoreCache(db, cache.WithBackground(group), cache.WithMetrics(metrics)),
		Enricher:   enricher,
		Feed:       emptyFeed{},
		Background: group,
	})

	srv := httptest.NewServer(NewRouter(Deps{
		Config:  cfg,
		Service: svc,
		Metrics: metrics,
		Clock:   clockwork.NewFakeClockAt(time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)),
	}))
	t.Cleanup(func() {
		srv.Close()
		group.Wait()
		_ = sqlDB.Close()
	})

	return &testAPI{srv: srv, db: db, enricher: enricher, group: group}
}

func (a *testAPI) do(t *testing.T, method, path string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeErr(t *testing.T, data []byte) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("error body not JSON: %v (%s)", err, data)
	}
	return body
}

func (a *testAPI) countDisasters(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := a.db.Model(&model.Disaster{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "OK" || body["timestamp"] != "2025-06-17T09:00:00Z" {
		t.Fatalf("body = %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
}

func TestCreateValidationFailsWithoutMutation(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"description":"water"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	body := decodeErr(t, data)
	if body.Error != "title is required" || body.RequestID == "" {
		t.Fatalf("body = %+v", body)
	}
	if api.countDisasters(t) != 0 || api.enricher.extracts != 0 {
		t.Fatalf("validation failure mutated state")
	}
}

func TestCreateRejectsMalformedJSON(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"title":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
}

func TestCreateAndGetDisaster(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPost, "/api/disasters",
		`{"title":"NYC Flood","description":"Heavy flooding in Manhattan","tags":"Flood, urgent,flood","user_id":"netrunnerX"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	var created disaster.Disaster
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.LocationName != "Manhattan, NYC" {
		t.Fatalf("created = %+v", created)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "flood" || created.Tags[1] != "urgent" {
		t.Fatalf("tags = %v", created.Tags)
	}
	if len(created.AuditTrail) != 1 || created.AuditTrail[0].Action != disaster.ActionCreate {
		t.Fatalf("audit = %+v", created.AuditTrail)
	}

	resp, data = api.do(t, http.MethodGet, "/api/disasters/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d (%s)", resp.StatusCode, data)
	}

	resp, data = api.do(t, http.MethodPut, "/api/disasters/"+created.ID,
		`{"title":"NYC Flood","description":"Receding","tags":["flood"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d (%s)", resp.StatusCode, data)
	}
	var updated disaster.Disaster
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(updated.AuditTrail) != 2 {
		t.Fatalf("audit after update = %+v", updated.AuditTrail)
	}

	resp, _ = api.do(t, http.MethodDelete, "/api/disasters/"+created.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = api.do(t, http.MethodGet, "/api/disasters/"+created.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
}

func TestUpdateUnknownIs404(t *testing.T) {
	api := newTestAPI(t, nil)

	resp, data := api.do(t, http.MethodPut, "/api/disasters/ghost", `{"title":"t","description":"d"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if decodeErr(t, data).Error != "disaster not found" {
		t.Fatalf("body = %s", data)
	}
	if api.enricher.extracts != 0 {
		t.Fatalf("model called for unknown id")
	}
}

func TestListPagination(t *testing.T) {
	api := newTestAPI(t, nil)
	for _, title := range []string{"a", "b", "c"} {
		resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"title":"`+title+`","description":"d","tags":["flood"]}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d (%s)", resp.StatusCode, data)
		}
	}

	resp, data := api.do(t, http.MethodGet, "/api/disasters?page=1&perPage=2&tags=FLOOD", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	var result disasters.ListResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Disasters) != 2 || !result.PageInfo.HasMorePages || result.PageInfo.PerPage != 2 {
		t.Fatalf("result = %+v", result.PageInfo)
	}

	resp, data = api.do(t, http.MethodGet, "/api/disasters?page=bogus&perPage=-3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.PageInfo.CurrentPage != 1 || result.PageInfo.PerPage != disaster.DefaultPerPage || result.PageInfo.TotalCount != 3 {
		t.Fatalf("defaults = %+v", result.PageInfo)
	}

	resp, _ = api.do(t, http.MethodGet, "/api/disasters?tagsMatchMode=most", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d", resp.StatusCode)
	}
}

func TestListHugePageArguments(t *testing.T) {
	api := newTestAPI(t, nil)
	for _, title := range []string{"a", "b", "c"} {
		resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"title":"`+title+`","description":"d"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d (%s)", resp.StatusCode, data)
		}
	}

	var result disasters.ListResult
	resp, data := api.do(t, http.MethodGet, "/api/disasters?page=4611686018427387904&perPage=4", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Disasters) != 0 || result.PageInfo.HasMorePages || result.PageInfo.TotalCount != 0 {
		t.Fatalf("far page = %d items, %+v", len(result.Disasters), result.PageInfo)
	}

	resp, data = api.do(t, http.MethodGet, "/api/disasters?perPage=9223372036854775807", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	result = disasters.ListResult{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.PageInfo.PerPage != disaster.MaxPerPage || len(result.Disasters) != 3 {
		t.Fatalf("huge perPage = %d items, %+v", len(result.Disasters), result.PageInfo)
	}
}

func TestSocialMediaWithoutPostsIs404(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"title":"t","description":"d"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", resp.StatusCode, data)
	}
	var created disaster.Disaster
	_ = json.Unmarshal(data, &created)

	resp, data = api.do(t, http.MethodGet, "/api/disasters/"+created.ID+"/social-media", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if decodeErr(t, data).Error != "no social media posts found" {
		t.Fatalf("body = %s", data)
	}
	if api.enricher.filters != 0 {
		t.Fatalf("filter called without posts")
	}
}

func TestResourcesValidationAndCreate(t *testing.T) {
	api := newTestAPI(t, nil)
	resp, data := api.do(t, http.MethodPost, "/api/disasters", `{"title":"t","description":"d"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", resp.StatusCode, data)
	}
	var created disaster.Disaster
	_ = json.Unmarshal(data, &created)
	base := "/api/disasters/" + created.ID + "/resources"

	for _, q := range []string{"?lat=40.7", "?lat=abc&lon=1", "?lat=91&lon=0"} {
		resp, data = api.do(t, http.MethodGet, base+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s status = %d (%s)", q, resp.StatusCode, data)
		}
	}

	resp, _ = api.do(t, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty resources status = %d", resp.StatusCode)
	}

	resp, data = api.do(t, http.MethodPost, base, `{"name":"Red Cross Shelter","type":"shelter","location_name":"Lower East Side"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create resource status = %d (%s)", resp.StatusCode, data)
	}

	resp, data = api.do(t, http.MethodGet, base+"?lat=40.7128&lon=-74.006", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resources status = %d (%s)", resp.StatusCode, data)
	}
	var items []disaster.NearbyResource
	if err := json.Unmarshal(data, &items); err != nil || len(items) != 1 {
		t.Fatalf("items = %s (%v)", data, err)
	}
}

func TestBodyLimit(t *testing.T) {
	api := newTestAPI(t, func(c *config.HTTPConfig) { c.MaxBodyBytes = 64 })

	body := `{"title":"` + strings.Repeat("x", 200) + `","description":"d"}`
	resp, data := api.do(t, http.MethodPost, "/api/disasters", body)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, func(c *config.HTTPConfig) {
		c.RateLimitPerSecond = 0.001
		c.RateLimitBurst = 1
	})

	resp, _ := api.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d", resp.StatusCode)
	}
	resp, _ = api.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", resp.StatusCode)
	}
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	api := newTestAPI(t, func(c *config.HTTPConfig) {
		c.RateLimitPerSecond = 0.001
		c.RateLimitBurst = 1
	})

	codes := make([]int, 0, 3)
	for _, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/health", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := api.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v", codes)
	}
}

func TestRateLimitTrustsProxyWhenConfigured(t *testing.T) {
	api := newTestAPI(t, func(c *config.HTTPConfig) {
		c.RateLimitPerSecond = 0.001
		c.RateLimitBurst = 1
		c.TrustProxy = true
	})

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/health", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := api.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("first request from %s status = %d", ip, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, func(c *config.HTTPConfig) { c.AllowedOrigins = []string{"http://localhost:5173"} })

	req, _ := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/disasters", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := api.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodGet, "/api/disasters/ghost", "")

	resp, data := api.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	found := false
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("disasterwatch_http_requests_total{")) &&
			bytes.Contains(line, []byte(`route="/api/disasters/{id}`)) &&
			bytes.Contains(line, []byte(`status="404"`)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("metrics missing route sample:\n%s", data)
	}
}

func TestTagListAcceptsStringOrArray(t *testing.T) {
	var req disasterRequest
	if err := json.Unmarshal([]byte(`{"tags":"a, b"}`), &req); err != nil || len(req.Tags) != 2 {
		t.Fatalf("string tags = %v, %v", req.Tags, err)
	}
	if err := json.Unmarshal([]byte(`{"tags":["a","b","c"]}`), &req); err != nil || len(req.Tags) != 3 {
		t.Fatalf("array tags = %v, %v", req.Tags, err)
	}
	if err := json.Unmarshal([]byte(`{"tags":42}`), &req); err == nil {
		t.Fatalf("numeric tags accepted")
	}
}
