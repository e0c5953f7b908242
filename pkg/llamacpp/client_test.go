package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, content any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"leafnet.gguf"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parts, ok := req.Messages[0].Content.([]any)
		if !ok || len(parts) != 2 || req.Temperature != 0 {
			http.Error(w, "expected text and image parts", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("")
	if err != nil || c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %v, %v", c, err)
	}
	if _, err := NewClient("localhost:8080"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestSimpleQuery(t *testing.T) {
	reply := `{"predictions":[{"label":"healthy","score":0.9}]}`
	tests := map[string]any{
		"string": reply,
		"parts":  []any{map[string]any{"type": "text", "text": reply}},
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, content)
			c, _ := NewClient(srv.URL)
			got, err := c.SimpleQuery(context.Background(), "leafnet", "classify", "aGVsbG8=")
			if err != nil {
				t.Fatalf("SimpleQuery failed: %v", err)
			}
			if got != reply {
				t.Errorf("Expected %s, got %s", reply, got)
			}
		})
	}
}

func TestSimpleQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "leafnet", "classify", "")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestModelExists(t *testing.T) {
	srv := newTestServer(t, "")
	c, _ := NewClient(srv.URL)
	ctx := context.Background()

	for model, want := range map[string]bool{"leafnet": true, "leafnet.gguf": true, "other": false} {
		got, err := c.ModelExists(ctx, model)
		if err != nil {
			t.Fatalf("ModelExists(%q) failed: %v", model, err)
		}
		if got != want {
			t.Errorf("ModelExists(%q) = %v, want %v", model, got, want)
		}
	}
}
