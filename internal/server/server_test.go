package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal"
	"github.com/valpere/sheetmentor/internal/message"
	"github.com/valpere/sheetmentor/internal/settings"
	"github.com/valpere/sheetmentor/internal/store"
)

type mockMessages struct {
	handleFunc func(ctx context.Context, raw []byte) message.Response
}

func (m *mockMessages) HandleRaw(ctx context.Context, raw []byte) message.Response {
	return m.handleFunc(ctx, raw)
}

func newTestServer(t *testing.T, msgs Messages) (*Server, *settings.Store, *store.Store) {
	t.Helper()

	st, err := settings.Open("")
	if err != nil {
		t.Fatalf("failed to open settings: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hist, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	if msgs == nil {
		msgs = &mockMessages{handleFunc: func(context.Context, []byte) message.Response {
			return message.Response{Success: true, Type: "NOOP"}
		}}
	}

	srv := New(Config{AllowedOrigins: []string{"chrome-extension://*"}}, Deps{
		Messages: msgs,
		Settings: st,
		History:  hist,
		Logger:   zerolog.Nop(),
	})
	return srv, st, hist
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected caller request id, got %q", got)
	}
}

func TestMessages(t *testing.T) {
	var got string
	srv, _, _ := newTestServer(t, &mockMessages{handleFunc: func(_ context.Context, raw []byte) message.Response {
		got = string(raw)
		return message.Response{Success: false, Type: message.TypeErrorResponse, Error: message.ErrUnknownType}
	}})

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/messages", `{"type":"PING"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != `{"type":"PING"}` {
		t.Errorf("unexpected body forwarded: %q", got)
	}

	var resp message.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Type != "ERROR_RESPONSE" || resp.Error != "Unknown message type" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSettingsCRUD(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	h := srv.Handler()

	if rec := do(t, h, http.MethodGet, "/v1/settings/geminiApiKey", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing key, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPut, "/v1/settings/geminiApiKey", `{"value":"secret"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if k, _ := st.APIKey(); k != "secret" {
		t.Errorf("expected key stored, got %q", k)
	}

	rec := do(t, h, http.MethodGet, "/v1/settings/geminiApiKey", "")
	var body settingBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Value != "secret" {
		t.Errorf("unexpected value %q", body.Value)
	}

	rec = do(t, h, http.MethodGet, "/v1/settings", "")
	if !strings.Contains(rec.Body.String(), `"geminiApiKey"`) {
		t.Errorf("expected key in list, got %s", rec.Body)
	}

	if rec := do(t, h, http.MethodDelete, "/v1/settings/geminiApiKey", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok, _ := st.Get("geminiApiKey"); ok {
		t.Error("expected key deleted")
	}
}

func TestPutSetting_Invalid(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	h := srv.Handler()

	if rec := do(t, h, http.MethodPut, "/v1/settings/x", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing value, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPut, "/v1/settings/x", `nope`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"errorType":"VALIDATION_ERROR"`) {
		t.Errorf("expected validation error type, got %s", rec.Body)
	}
}

func TestRuns(t *testing.T) {
	srv, _, hist := newTestServer(t, nil)
	h := srv.Handler()

	run := internal.BatchRun{
		ID:             "run-1",
		Kind:           internal.RunKindRefine,
		SpreadsheetID:  "s",
		SourceRange:    "A:B",
		TargetRange:    "B:B",
		Success:        true,
		ProcessedCount: 2,
		SuccessCount:   1,
		ErrorCount:     1,
		Errors:         []string{"Row 1: AI processing failed: boom"},
		StartedAt:      time.Now(),
	}
	if err := hist.SaveRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/v1/runs?limit=5", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("unexpected list response %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/v1/runs/run-1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Row 1: AI processing failed") {
		t.Errorf("unexpected run response %d: %s", rec.Code, rec.Body)
	}

	if rec := do(t, h, http.MethodGet, "/v1/runs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/runs?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/runs/stats", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"totalRuns":1`) {
		t.Errorf("unexpected stats response %d: %s", rec.Code, rec.Body)
	}
}

func TestDetect(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet,
		"/v1/sheets/detect?url=https://docs.google.com/spreadsheets/d/abc_123-X/edit&title=Interview%20-%20Google%20Sheets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"spreadsheetId":"abc_123-X"`) ||
		!strings.Contains(rec.Body.String(), `"sheetName":"Interview"`) {
		t.Errorf("unexpected body %s", rec.Body)
	}

	if rec := do(t, h, http.MethodGet, "/v1/sheets/detect?url=https://example.com", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/messages", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdef" {
		t.Errorf("expected extension origin allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected foreign origin rejected, got %q", got)
	}
}

func TestServe_Shutdown(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
