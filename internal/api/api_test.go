package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/harrier/internal/detector"
	"github.com/opensource-finance/harrier/internal/domain"
)

func createTestServer(t *testing.T) (*Server, *detector.Ensemble) {
	t.Helper()

	ensemble, err := detector.NewEnsemble(domain.DefaultConfig().Detector, nil)
	if err != nil {
		t.Fatalf("failed to create ensemble: %v", err)
	}
	server := NewServer(domain.ServerConfig{}, nil, nil, nil, ensemble, nil, "test-v1")
	return server, ensemble
}

func trainEnsemble(t *testing.T, ensemble *detector.Ensemble) {
	t.Helper()

	rng := rand.New(rand.NewSource(5))
	rows := make([][]float64, 60)
	for i := range rows {
		rows[i] = []float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	ft := domain.NewFeatureTable([]string{"amount", "amount_ratio"}, rows)
	if _, err := ensemble.Train(ft, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", body["status"])
	}
	if body["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", body["version"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	server, ensemble := createTestServer(t)

	t.Run("NotReadyUntrained", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["ready"] != "false" || body["reason"] != "no trained models" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("ReadyAfterTraining", func(t *testing.T) {
		trainEnsemble(t, ensemble)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	server, ensemble := createTestServer(t)
	trainEnsemble(t, ensemble)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Version != "test-v1" {
		t.Errorf("expected version test-v1, got %s", body.Version)
	}
	if len(body.LiveModels) == 0 {
		t.Error("expected live models after training")
	}
	if len(body.Metrics) != len(body.LiveModels) {
		t.Errorf("expected metrics for each live model, got %d/%d", len(body.Metrics), len(body.LiveModels))
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingSetsRequestID", func(t *testing.T) {
		var seen string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = r.Context().Value(RequestIDKey).(string)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		TracingMiddleware(inner).ServeHTTP(rec, req)

		if seen == "" {
			t.Error("expected request ID in handler context")
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("TracingKeepsProvidedRequestID", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		TracingMiddleware(inner).ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected req-123, got %s", got)
		}
	})

	t.Run("RecoverHandlesPanic", func(t *testing.T) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		RecoverMiddleware(inner).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500 after panic, got %d", rec.Code)
		}
	})
}
