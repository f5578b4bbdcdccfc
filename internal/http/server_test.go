package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleetrev/internal/analytics"
	"fleetrev/internal/storage"
)

type stubRepo struct {
	records  []analytics.Record
	settings map[string]string

	insertErr     error
	inserted      []analytics.Record
	upserts       []string
	notifications []storage.Notification
	markedRead    []int64
	markReadErr   error
}

func (r *stubRepo) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]analytics.Record, error) {
	return r.records, nil
}

func (r *stubRepo) InsertRecords(ctx context.Context, records []analytics.Record) (int, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.inserted = append(r.inserted, records...)
	r.records = append(r.records, records...)
	return len(records), nil
}

func (r *stubRepo) GetFilterOptions(ctx context.Context) (storage.FilterOptions, error) {
	opts := storage.FilterOptions{}
	seen := make(map[string]bool)
	for _, rec := range r.records {
		if !seen[rec.Fleet] {
			seen[rec.Fleet] = true
			opts.Fleets = append(opts.Fleets, rec.Fleet)
		}
	}
	return opts, nil
}

func (r *stubRepo) GetSettings(ctx context.Context) (map[string]string, error) {
	if r.settings == nil {
		return map[string]string{}, nil
	}
	return r.settings, nil
}

func (r *stubRepo) UpsertSetting(ctx context.Context, key, value, description string) error {
	r.upserts = append(r.upserts, key+"="+value)
	return nil
}

func (r *stubRepo) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]storage.Notification, error) {
	return r.notifications, nil
}

func (r *stubRepo) MarkNotificationRead(ctx context.Context, id int64) error {
	if r.markReadErr != nil {
		return r.markReadErr
	}
	r.markedRead = append(r.markedRead, id)
	return nil
}

type stubPublisher struct {
	published []int
	err       error
}

func (p *stubPublisher) PublishImportCompleted(ctx context.Context, filesProcessed, recordsImported int) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, recordsImported)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, repo Repository, publisher ImportPublisher) *Server {
	t.Helper()
	s := NewServer(Options{
		Addr:                 ":0",
		Repository:           repo,
		Publisher:            publisher,
		Detector:             analytics.DefaultDetectorOptions(),
		CacheSize:            10,
		CacheTTL:             time.Minute,
		CacheCleanupInterval: time.Minute,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(s *Server, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &stubRepo{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestSummaryComputesAnalytics(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{
			{Date: day(1), Fleet: "1001", Amount: 1000},
			{Date: day(1), Fleet: "1001", Amount: 1000},
			{Date: day(2), Fleet: "2002", Amount: 500},
		},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/summary", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result analytics.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if result.Stats.TotalRevenue != 2500 {
		t.Errorf("TotalRevenue = %v, want 2500", result.Stats.TotalRevenue)
	}
	if result.Stats.TopPerformingFleet != "1001" {
		t.Errorf("TopPerformingFleet = %q, want %q", result.Stats.TopPerformingFleet, "1001")
	}
	if len(result.FleetSummaries) != 2 {
		t.Fatalf("FleetSummaries = %d, want 2", len(result.FleetSummaries))
	}
	if result.FleetSummaries[0].Remittance != 1680 {
		t.Errorf("fleet 1001 remittance = %v, want 1680", result.FleetSummaries[0].Remittance)
	}
}

func TestSummarySecurityHeaders(t *testing.T) {
	s := newTestServer(t, &stubRepo{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/summary", nil, "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestDashboardStatsCached(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{{Date: day(1), Fleet: "1001", Amount: 100}},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/dashboard-stats", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var first analytics.DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if first.TotalRevenue != 100 {
		t.Fatalf("TotalRevenue = %v, want 100", first.TotalRevenue)
	}

	// The second call must be served from cache even though the data changed.
	repo.records = append(repo.records, analytics.Record{Date: day(2), Fleet: "1001", Amount: 900})

	rec = doRequest(s, http.MethodGet, "/api/analytics/dashboard-stats", nil, "")
	var second analytics.DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if second.TotalRevenue != 100 {
		t.Errorf("cached TotalRevenue = %v, want 100", second.TotalRevenue)
	}

	// Different filters must not share cache entries.
	rec = doRequest(s, http.MethodGet, "/api/analytics/dashboard-stats?fleets=1001", nil, "")
	var filtered analytics.DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if filtered.TotalRevenue != 1000 {
		t.Errorf("filtered TotalRevenue = %v, want 1000", filtered.TotalRevenue)
	}
}

func TestChartsEndpoint(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{
			{Date: day(2), Fleet: "1001", Amount: 200},
			{Date: day(1), Fleet: "2002", Amount: 100},
		},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/charts", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var charts analytics.ChartData
	if err := json.Unmarshal(rec.Body.Bytes(), &charts); err != nil {
		t.Fatalf("decode charts: %v", err)
	}
	if len(charts.RevenueTrend) != 2 {
		t.Fatalf("RevenueTrend = %d points, want 2", len(charts.RevenueTrend))
	}
	if charts.RevenueTrend[0].Label != "2024-01-01" {
		t.Errorf("trend starts at %q, want 2024-01-01", charts.RevenueTrend[0].Label)
	}
	if charts.RevenueByFleet[0].Label != "1001" {
		t.Errorf("top revenue fleet = %q, want 1001", charts.RevenueByFleet[0].Label)
	}
}

func TestFiltersEndpoint(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{
			{Date: day(1), Fleet: "1001", Amount: 1},
			{Date: day(1), Fleet: "2002", Amount: 1},
		},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/filters", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var opts storage.FilterOptions
	if err := json.Unmarshal(rec.Body.Bytes(), &opts); err != nil {
		t.Fatalf("decode filters: %v", err)
	}
	if len(opts.Fleets) != 2 {
		t.Errorf("Fleets = %v, want 2 entries", opts.Fleets)
	}
}

func TestExportExcel(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{{Date: day(1), Fleet: "1001", Amount: 100}},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/export/excel", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", rec.Header().Get("Content-Disposition"))
	}
	if body := rec.Body.Bytes(); len(body) < 2 || body[0] != 'P' || body[1] != 'K' {
		t.Error("body does not start with xlsx zip magic")
	}
}

func TestExportPDF(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{{Date: day(1), Fleet: "1001", Amount: 100}},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/analytics/export/pdf", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("body does not start with %PDF")
	}
}

func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadImportsRecords(t *testing.T) {
	repo := &stubRepo{}
	publisher := &stubPublisher{}
	s := newTestServer(t, repo, publisher)

	csv := "date,fleet,amount\n2024-01-01,2010M,100\n2024-01-02,1001,200\n"
	body, contentType := multipartUpload(t, map[string]string{"revenue.csv": csv})

	rec := doRequest(s, http.MethodPost, "/api/records/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var stats struct {
		FilesProcessed  int `json:"files_processed"`
		RecordsImported int `json:"records_imported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.FilesProcessed != 1 || stats.RecordsImported != 2 {
		t.Errorf("stats = %+v, want 1 file, 2 records", stats)
	}

	if len(repo.inserted) != 2 {
		t.Fatalf("inserted = %d records, want 2", len(repo.inserted))
	}
	if repo.inserted[0].Fleet != "2010" {
		t.Errorf("inserted fleet = %q, want alias-normalized %q", repo.inserted[0].Fleet, "2010")
	}

	if len(publisher.published) != 1 || publisher.published[0] != 2 {
		t.Errorf("published = %v, want one announcement of 2 records", publisher.published)
	}
}

func TestUploadPurgesCaches(t *testing.T) {
	repo := &stubRepo{
		records: []analytics.Record{{Date: day(1), Fleet: "1001", Amount: 100}},
	}
	s := newTestServer(t, repo, nil)

	doRequest(s, http.MethodGet, "/api/analytics/dashboard-stats", nil, "")
	if s.statsCache.Size() != 1 {
		t.Fatalf("stats cache size = %d, want 1", s.statsCache.Size())
	}

	csv := "date,fleet,amount\n2024-01-02,1001,900\n"
	body, contentType := multipartUpload(t, map[string]string{"more.csv": csv})
	rec := doRequest(s, http.MethodPost, "/api/records/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, want 200", rec.Code)
	}
	if s.statsCache.Size() != 0 {
		t.Errorf("stats cache size after upload = %d, want 0", s.statsCache.Size())
	}

	rec = doRequest(s, http.MethodGet, "/api/analytics/dashboard-stats", nil, "")
	var stats analytics.DashboardStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRevenue != 1000 {
		t.Errorf("TotalRevenue after upload = %v, want 1000", stats.TotalRevenue)
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	s := newTestServer(t, &stubRepo{}, nil)

	body, contentType := multipartUpload(t, map[string]string{})
	rec := doRequest(s, http.MethodPost, "/api/records/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadPublisherFailureDoesNotFailRequest(t *testing.T) {
	repo := &stubRepo{}
	publisher := &stubPublisher{err: fmt.Errorf("broker down")}
	s := newTestServer(t, repo, publisher)

	csv := "date,fleet,amount\n2024-01-01,1001,100\n"
	body, contentType := multipartUpload(t, map[string]string{"revenue.csv": csv})
	rec := doRequest(s, http.MethodPost, "/api/records/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite publish failure", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := &stubRepo{settings: map[string]string{"REMITTANCE_1": "90"}}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/settings", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var settings map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings["REMITTANCE_1"] != "90" {
		t.Errorf("REMITTANCE_1 = %q, want 90", settings["REMITTANCE_1"])
	}

	payload := `[{"key":"REMITTANCE_2","value":"85","description":"tier two override"}]`
	rec = doRequest(s, http.MethodPut, "/api/settings", bytes.NewBufferString(payload), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(repo.upserts) != 1 || repo.upserts[0] != "REMITTANCE_2=85" {
		t.Errorf("upserts = %v, want [REMITTANCE_2=85]", repo.upserts)
	}
}

func TestPutSettingsValidation(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode int
	}{
		{name: "invalid JSON", payload: `{"key":`, wantCode: http.StatusBadRequest},
		{name: "empty array", payload: `[]`, wantCode: http.StatusBadRequest},
		{name: "blank key", payload: `[{"key":" ","value":"1"}]`, wantCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubRepo{}, nil)
			rec := doRequest(s, http.MethodPut, "/api/settings", bytes.NewBufferString(tt.payload), "application/json")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestNotifications(t *testing.T) {
	repo := &stubRepo{
		notifications: []storage.Notification{
			{ID: 2, Title: "Revenue anomaly: fleet 1001", Type: "warning"},
			{ID: 1, Title: "Data Import Successful", Type: "info"},
		},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, http.MethodGet, "/api/notifications", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []storage.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("notifications = %d, want 2", len(list))
	}

	rec = doRequest(s, http.MethodPost, "/api/notifications/2/read", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d, want 200", rec.Code)
	}
	if len(repo.markedRead) != 1 || repo.markedRead[0] != 2 {
		t.Errorf("markedRead = %v, want [2]", repo.markedRead)
	}
}

func TestMarkNotificationReadErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		repo     *stubRepo
		wantCode int
	}{
		{name: "non-numeric id", target: "/api/notifications/abc/read", repo: &stubRepo{}, wantCode: http.StatusBadRequest},
		{name: "missing notification", target: "/api/notifications/99/read", repo: &stubRepo{markReadErr: sql.ErrNoRows}, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.repo, nil)
			rec := doRequest(s, http.MethodPost, tt.target, nil, "")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestParseRecordFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/analytics/summary?start_date=2024-01-01&end_date=2024-02-01&fleets=1001,2002&limit=10", nil)

	filter := parseRecordFilter(req)
	if got := filter.StartDate.Format("2006-01-02"); got != "2024-01-01" {
		t.Errorf("StartDate = %s, want 2024-01-01", got)
	}
	if got := filter.EndDate.Format("2006-01-02"); got != "2024-02-01" {
		t.Errorf("EndDate = %s, want 2024-02-01", got)
	}
	if len(filter.Fleets) != 2 {
		t.Errorf("Fleets = %v, want 2 entries", filter.Fleets)
	}
	if filter.Limit != 10 {
		t.Errorf("Limit = %d, want 10", filter.Limit)
	}

	// Malformed values leave the dimension unfiltered.
	req = httptest.NewRequest(http.MethodGet, "/api/analytics/summary?start_date=bogus&limit=-1", nil)
	filter = parseRecordFilter(req)
	if !filter.StartDate.IsZero() {
		t.Errorf("StartDate = %v, want zero", filter.StartDate)
	}
	if filter.Limit != 0 {
		t.Errorf("Limit = %d, want 0", filter.Limit)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < rateLimitPerMinute; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over the limit allowed, want rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other client rejected, want allowed")
	}
}
