package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "github.com/markis/gh-chartstream/internal/log"
)

const block = "```json\n{\"mark\":\"bar\",\"encoding\":{\"x\":{\"field\":\"region\"}}}\n```"

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, New(applog.Discard(), Options{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestParse(t *testing.T) {
	s := New(applog.Discard(), Options{})
	rec := do(t, s, http.MethodPost, "/api/parse", "Intro\n"+block+"\nOutro\n```json\n{")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Segments []map[string]any `json:"segments"`
		Pending  bool             `json:"pending"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var types []string
	for _, s := range resp.Segments {
		types = append(types, s["type"].(string))
	}
	if strings.Join(types, ",") != "text,chart,text,chart-loading" {
		t.Errorf("unexpected segment types %v", types)
	}
	if !resp.Pending {
		t.Errorf("expected pending true")
	}
}

func TestParse_EmptyBody(t *testing.T) {
	rec := do(t, New(applog.Discard(), Options{}), http.MethodPost, "/api/parse", "  \n")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"segments":[]`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestParse_InvalidQuery(t *testing.T) {
	s := New(applog.Discard(), Options{})
	bad := "```json\n{\"foo\":1}\n```"

	rec := do(t, s, http.MethodPost, "/api/parse", bad)
	if strings.Contains(rec.Body.String(), `"invalid"`) {
		t.Errorf("invalid segments should be dropped by default: %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/parse?invalid=1", bad)
	if !strings.Contains(rec.Body.String(), `"type":"invalid"`) {
		t.Errorf("expected invalid segment: %s", rec.Body.String())
	}
}

func TestParse_HTML(t *testing.T) {
	rec := do(t, New(applog.Discard(), Options{}), http.MethodPost, "/api/parse?format=html", "Hello\n"+block)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "vegaEmbed(") {
		t.Errorf("expected chart embed in page")
	}
}

func TestParse_BodyTooLarge(t *testing.T) {
	rec := do(t, New(applog.Discard(), Options{MaxBodyBytes: 8}), http.MethodPost, "/api/parse", "this body is too long")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestNormalize(t *testing.T) {
	s := New(applog.Discard(), Options{})

	rec := do(t, s, http.MethodPost, "/api/normalize", `{"mark":"bar","encoding":{},"width":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var spec map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if spec["width"] != float64(100) || spec["height"] != float64(350) {
		t.Errorf("unexpected spec %v", spec)
	}

	if rec := do(t, s, http.MethodPost, "/api/normalize", `{"mark":`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/normalize", `{"foo":1}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing keys, got %d", rec.Code)
	}
}
