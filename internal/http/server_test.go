package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kasboek/internal/config"
	"kasboek/internal/core"
	"kasboek/internal/journal"
	"kasboek/internal/ledger/excel"
	"kasboek/internal/recommend"
)

type fakeStore struct {
	appended  []core.Transaction
	appendErr error
	balance   core.Money
	items     []core.Transaction
}

func (f *fakeStore) Append(_ context.Context, t core.Transaction) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.appended = append(f.appended, t)
	return "Transacties!A2", nil
}

func (f *fakeStore) Recent(_ context.Context, limit int) ([]core.Transaction, error) {
	if limit > len(f.items) {
		limit = len(f.items)
	}
	return f.items[:limit], nil
}

func (f *fakeStore) All(_ context.Context) ([]core.Transaction, error) {
	return f.items, nil
}

func (f *fakeStore) Balance(_ context.Context) (core.Money, error) {
	return f.balance, nil
}

type fakeRecorder struct {
	events []journal.Event
}

func (f *fakeRecorder) Record(_ context.Context, e journal.Event) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, limit int) ([]journal.Event, error) {
	if limit > len(f.events) {
		limit = len(f.events)
	}
	return f.events[:limit], nil
}

func (f *fakeRecorder) kinds() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type sliceSource struct {
	examples []recommend.Example
	err      error
}

func (s sliceSource) Examples(context.Context) ([]recommend.Example, error) {
	return s.examples, s.err
}

func newTestServer(t *testing.T, store *fakeStore, opts Options) *Server {
	t.Helper()
	t.Setenv("KASBOEK_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	s := NewServer("127.0.0.1:0", cfg, store, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(s, req)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestIndexShowsBalanceAndRecent(t *testing.T) {
	store := &fakeStore{
		balance: core.Money{Cents: 10900},
		items: []core.Transaction{
			{Date: mustDate(t, "2026-08-20"), Description: "Koffie", Direction: core.Debit, Amount: core.Money{Cents: 350}, Tag: "Algemeen"},
		},
	}
	s := newTestServer(t, store, Options{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "109,00") {
		t.Errorf("body missing balance, got %.200s", body)
	}
	if !strings.Contains(body, "Koffie") {
		t.Errorf("body missing recent transaction")
	}
}

func TestCreateTransaction(t *testing.T) {
	store := &fakeStore{balance: core.Money{Cents: 9650}}
	recorder := &fakeRecorder{}
	s := newTestServer(t, store, Options{Events: recorder})

	rec := postForm(s, "/transactions", url.Values{
		"date":        {"2026-08-25"},
		"description": {"Koffie en thee"},
		"amount":      {"3,50"},
		"direction":   {"Af"},
		"tag":         {"Training"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	if body["new_total"] != "96.50" {
		t.Errorf("new_total = %v, want 96.50", body["new_total"])
	}
	if len(store.appended) != 1 {
		t.Fatalf("appended %d transactions, want 1", len(store.appended))
	}
	got := store.appended[0]
	if got.Amount.Cents != 350 || got.Direction != core.Debit || got.Tag != "Training" {
		t.Errorf("stored transaction = %+v", got)
	}
	if kinds := recorder.kinds(); len(kinds) != 1 || kinds[0] != journal.KindTransactionAdded {
		t.Errorf("journal kinds = %v", kinds)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	cases := []struct {
		name string
		form url.Values
	}{
		{"missing description", url.Values{"date": {"2026-08-25"}, "amount": {"3,50"}, "direction": {"Af"}}},
		{"bad date", url.Values{"date": {"25-08-2026"}, "description": {"Koffie"}, "amount": {"3,50"}, "direction": {"Af"}}},
		{"bad amount", url.Values{"date": {"2026-08-25"}, "description": {"Koffie"}, "amount": {"abc"}, "direction": {"Af"}}},
		{"negative amount", url.Values{"date": {"2026-08-25"}, "description": {"Koffie"}, "amount": {"-3,50"}, "direction": {"Af"}}},
		{"bad direction", url.Values{"date": {"2026-08-25"}, "description": {"Koffie"}, "amount": {"3,50"}, "direction": {"Sideways"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			s := newTestServer(t, store, Options{})
			rec := postForm(s, "/transactions", tc.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
			}
			if len(store.appended) != 0 {
				t.Errorf("transaction stored despite invalid input")
			}
		})
	}
}

func TestCreateTransactionWithoutWorkbook(t *testing.T) {
	store := &fakeStore{appendErr: excel.ErrNoWorkbook}
	s := newTestServer(t, store, Options{})

	rec := postForm(s, "/transactions", url.Values{
		"date":        {"2026-08-25"},
		"description": {"Koffie"},
		"amount":      {"3,50"},
		"direction":   {"Af"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Instellingen") {
		t.Errorf("error should point at the settings page, got %s", rec.Body.String())
	}
}

func TestCreateTransactionMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func postJSON(s *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return doRequest(s, req)
}

func recommendations(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	recs, ok := body["recommendations"].([]any)
	if !ok {
		t.Fatalf("recommendations missing from %s", rec.Body.String())
	}
	return recs
}

func TestRecommendCategory(t *testing.T) {
	source := sliceSource{examples: []recommend.Example{
		{Description: "koffie voor training", Category: "Training"},
		{Description: "koffie en thee", Category: "Algemeen"},
	}}
	s := newTestServer(t, &fakeStore{}, Options{Recommender: recommend.New(source)})

	recs := recommendations(t, postJSON(s, "/api/recommend-category", `{"description":"koffie"}`))
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	first := recs[0].(map[string]any)
	if first["category"] == "" || first["score"].(float64) <= 0 {
		t.Errorf("unexpected first recommendation %v", first)
	}
}

func TestRecommendCategoryShortQuery(t *testing.T) {
	source := sliceSource{examples: []recommend.Example{{Description: "koffie", Category: "Algemeen"}}}
	s := newTestServer(t, &fakeStore{}, Options{Recommender: recommend.New(source)})

	if recs := recommendations(t, postJSON(s, "/api/recommend-category", `{"description":"ko"}`)); len(recs) != 0 {
		t.Fatalf("short query should yield no recommendations, got %v", recs)
	}
}

func TestRecommendCategoryDatasetUnavailable(t *testing.T) {
	source := sliceSource{err: recommend.ErrDatasetUnavailable}
	s := newTestServer(t, &fakeStore{}, Options{Recommender: recommend.New(source)})

	if recs := recommendations(t, postJSON(s, "/api/recommend-category", `{"description":"koffie"}`)); len(recs) != 0 {
		t.Fatalf("unavailable dataset should yield an empty list, got %v", recs)
	}
}

func TestRecommendCategoryWithoutRecommender(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	if recs := recommendations(t, postJSON(s, "/api/recommend-category", `{"description":"koffie"}`)); len(recs) != 0 {
		t.Fatalf("missing recommender should yield an empty list, got %v", recs)
	}
}

func TestRecommendCategoryBadBody(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{Recommender: recommend.New(sliceSource{})})
	if recs := recommendations(t, postJSON(s, "/api/recommend-category", `{not json`)); len(recs) != 0 {
		t.Fatalf("bad body should yield an empty list, got %v", recs)
	}
}

func TestQuitTriggersShutdown(t *testing.T) {
	recorder := &fakeRecorder{}
	shutdown := make(chan struct{})
	s := newTestServer(t, &fakeStore{}, Options{
		Events:          recorder,
		RequestShutdown: func() { close(shutdown) },
	})

	rec := postJSON(s, "/quit", `{"duration":"12 min"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case <-shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not requested")
	}
	if kinds := recorder.kinds(); len(kinds) != 1 || kinds[0] != journal.KindSessionStopped {
		t.Errorf("journal kinds = %v", kinds)
	}
}

func TestSetLogLevel(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestServer(t, &fakeStore{}, Options{Events: recorder})

	rec := postForm(s, "/settings/log-level", url.Values{"level": {"debug"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := s.cfg.LogLevel(); got != "DEBUG" {
		t.Errorf("log level = %s, want DEBUG", got)
	}
	if kinds := recorder.kinds(); len(kinds) != 1 || kinds[0] != journal.KindSettingChanged {
		t.Errorf("journal kinds = %v", kinds)
	}

	rec = postForm(s, "/settings/log-level", url.Values{"level": {"VERBOSE"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid level status = %d", rec.Code)
	}
}

func TestSetBackupDirectory(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	dir := filepath.Join(t.TempDir(), "nieuwe-backups")

	rec := postForm(s, "/settings/backup-directory", url.Values{"directory": {dir}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := s.cfg.BackupDirectory(); got != dir {
		t.Errorf("backup directory = %s, want %s", got, dir)
	}
}

func TestSetWorkbookPathRejectsMissingFile(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	rec := postForm(s, "/settings/workbook-path", url.Values{
		"path": {filepath.Join(t.TempDir(), "bestaat-niet.xlsx")},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestSettingsPageRenders(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Transacties") {
		t.Errorf("settings page missing sheet name")
	}
}

func TestEventsEndpointWithoutJournal(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, Options{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if events, ok := body["events"].([]any); !ok || len(events) != 0 {
		t.Errorf("events = %v, want empty list", body["events"])
	}
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}
