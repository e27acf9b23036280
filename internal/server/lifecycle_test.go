package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/config"
	"github.com/ryanmcguirecode/batchdesk/internal/server/endpoints"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/testutil"
)

// TestServer_FullLifecycle boots the server on a real port and exercises the
// HTTP surface end to end: liveness endpoints, an ingest/acquire round trip,
// and a clean shutdown on context cancellation.
func TestServer_FullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}

	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(Config{
		Host:       "127.0.0.1",
		Port:       port,
		Store:      store.NewMemory(),
		Logger:     logger,
		Assignment: cfg.Assignment,
		Sweep:      cfg.Sweep,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()
	handle := &testutil.StartServer{Cancel: serverCancel, Done: serverErr}

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := testutil.WaitForServer(baseURL, 30*time.Second); err != nil {
		handle.Stop()
		t.Fatalf("server did not start: %v", err)
	}

	client := testutil.HTTPClient()

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Store != "ok" {
			t.Errorf("health.Store = %q, want %q", health.Store, "ok")
		}
	})

	t.Run("ingest_and_acquire_round_trip", func(t *testing.T) {
		body, _ := json.Marshal(endpoints.IngestRequest{
			Organization: "acme",
			Filename:     "invoice-001.pdf",
		})
		resp, err := client.Post(baseURL+"/api/documents", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("ingest status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		resp, err = client.Get(baseURL + "/api/batches?organization=acme")
		if err != nil {
			t.Fatalf("list batches failed: %v", err)
		}
		defer resp.Body.Close()
		var list endpoints.ListBatchesResponse
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(list.Batches) != 1 {
			t.Fatalf("got %d batches, want 1", len(list.Batches))
		}

		acquireBody, _ := json.Marshal(endpoints.AcquireRequest{
			CallerID:     "alice",
			Organization: "acme",
		})
		resp, err = client.Post(
			baseURL+"/api/batches/"+list.Batches[0].BatchID+"/acquire",
			"application/json", bytes.NewReader(acquireBody))
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("acquire status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var acq endpoints.AcquireResponse
		if err := json.NewDecoder(resp.Body).Decode(&acq); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !acq.Acquired {
			t.Error("Acquired = false, want true")
		}
	})

	t.Run("clean_shutdown", func(t *testing.T) {
		serverCancel()
		if err := testutil.WaitForShutdown(serverErr, 15*time.Second); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if srv.IsRunning() {
			t.Error("server still reports running after shutdown")
		}
	})
}
