package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oversync/syncgate/internal/retry"
)

func TestHTTPAdapterPostsOperationAndPayload(t *testing.T) {
	var got attemptRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("erp", srv.URL, time.Second)
	resp, err := a.Attempt(context.Background(), "erp", "order.create", []byte(`{"order_id":42}`))
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if string(resp) != `{"accepted":true}` {
		t.Errorf("response = %q", resp)
	}
	if got.Operation != "order.create" {
		t.Errorf("operation = %q, want order.create", got.Operation)
	}
	if string(got.Payload) != `{"order_id":42}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestHTTPAdapterNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order already exists", http.StatusConflict)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("erp", srv.URL, time.Second)
	_, err := a.Attempt(context.Background(), "erp", "order.create", nil)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "order already exists") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestHTTPAdapterUnreachableEndpoint(t *testing.T) {
	a := NewHTTPAdapter("erp", "http://127.0.0.1:1/sync", 100*time.Millisecond)
	if _, err := a.Attempt(context.Background(), "erp", "order.create", nil); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestRegistryRoutesBySystem(t *testing.T) {
	r := NewRegistry()
	r.Register("erp", retry.AdapterFunc(
		func(_ context.Context, _, _ string, _ []byte) ([]byte, error) {
			return []byte("erp"), nil
		}))

	resp, err := r.Attempt(context.Background(), "erp", "op", nil)
	if err != nil || string(resp) != "erp" {
		t.Fatalf("got %q, %v", resp, err)
	}

	// An unconfigured system is a normal failed attempt.
	if _, err := r.Attempt(context.Background(), "unknown", "op", nil); err == nil {
		t.Fatal("expected error for unknown system")
	}
}
