package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/helm/internal/store"
)

type fakeReader struct {
	rows []store.LikelihoodRow
	runs []store.Run
	err  error
}

func (f *fakeReader) LikelihoodsByConversation(_ context.Context, conversationID, kind string) ([]store.LikelihoodRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.LikelihoodRow
	for _, r := range f.rows {
		if r.ConversationID == conversationID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReader) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func newTestServer(db StoreReader) *Server {
	return NewServer(8760, "helm-secret", "gemma-2b-redirection", db, nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/api/v1/helm/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "helm" {
		t.Errorf("expected agent helm, got %q", body["agent"])
	}
	if body["model"] != "gemma-2b-redirection" {
		t.Errorf("expected model name, got %q", body["model"])
	}
}

func TestLikelihoodsEndpoint_RequiresAuth(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/api/v1/helm/likelihoods/c1", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/helm/likelihoods/c1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
}

func TestLikelihoodsEndpoint(t *testing.T) {
	db := &fakeReader{rows: []store.LikelihoodRow{
		{ID: uuid.New(), ConversationID: "c1", UtteranceID: "u2", Kind: "actual", LogProb: -14.5},
		{ID: uuid.New(), ConversationID: "c1", UtteranceID: "u2", Kind: "reference", LogProb: -12.25},
		{ID: uuid.New(), ConversationID: "c2", UtteranceID: "u7", Kind: "actual", LogProb: -3},
	}}
	srv := newTestServer(db)

	req := httptest.NewRequest("GET", "/api/v1/helm/likelihoods/c1", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Kind        string                `json:"kind"`
		Likelihoods []store.LikelihoodRow `json:"likelihoods"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Kind != "actual" {
		t.Errorf("default kind = %q, want actual", body.Kind)
	}
	if len(body.Likelihoods) != 1 || body.Likelihoods[0].LogProb != -14.5 {
		t.Errorf("likelihoods = %+v", body.Likelihoods)
	}

	// Reference series via query param.
	req = httptest.NewRequest("GET", "/api/v1/helm/likelihoods/c1?kind=reference", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestLikelihoodsEndpoint_UnknownKind(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/api/v1/helm/likelihoods/c1?kind=bogus", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown kind, got %d", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	db := &fakeReader{runs: []store.Run{
		{ID: uuid.New(), CorpusRef: "corpus-a", Status: "completed"},
		{ID: uuid.New(), CorpusRef: "corpus-b", Status: "running"},
	}}
	srv := newTestServer(db)

	req := httptest.NewRequest("GET", "/api/v1/helm/runs?limit=1", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Runs []store.Run `json:"runs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Runs) != 1 || body.Runs[0].CorpusRef != "corpus-a" {
		t.Errorf("runs = %+v", body.Runs)
	}
}

func TestRunsEndpoint_BadLimit(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/api/v1/helm/runs?limit=banana", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestQueryFailure(t *testing.T) {
	srv := newTestServer(&fakeReader{err: errors.New("db down")})

	req := httptest.NewRequest("GET", "/api/v1/helm/runs", nil)
	req.Header.Set("Authorization", "Bearer helm-secret")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestUnconfiguredToken(t *testing.T) {
	srv := NewServer(8760, "", "gemma-2b-redirection", &fakeReader{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/helm/runs", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when token unconfigured, got %d", w.Code)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&fakeReader{})

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
