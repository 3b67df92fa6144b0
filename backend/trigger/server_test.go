package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leclasseur/backend"
)

type recorder struct {
	mu         sync.Mutex
	events     []string
	broadcasts int
}

func (r *recorder) Emit(name string, data ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recorder) BroadcastReload(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts++
	return 1
}

func TestServer_Trigger(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			rec := &recorder{}
			handler := NewServer(rec, rec).Handler()

			req := httptest.NewRequest(method, Path, nil)
			req.Header.Set("Origin", "https://app.example.test")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "update_triggered", body["status"])

			assert.Equal(t, []string{backend.ManualUpdateEvent}, rec.events)
			assert.Equal(t, 1, rec.broadcasts)
		})
	}
}

func TestServer_WithoutHub(t *testing.T) {
	rec := &recorder{}
	handler := NewServer(rec, nil).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, Path, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rec.events, 1)
}

func TestServer_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"unknown path", http.MethodGet, "/other", http.StatusNotFound},
		{"wrong method", http.MethodDelete, Path, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w := httptest.NewRecorder()
			NewServer(rec, rec).Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Empty(t, rec.events)
			assert.Zero(t, rec.broadcasts)
		})
	}
}
