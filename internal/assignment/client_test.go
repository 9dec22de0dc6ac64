package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotServer(t *testing.T, snap *Snapshot) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cpo-1", r.URL.Query().Get("cpo_id"))
		resp := snapshotResponse{Code: 0}
		resp.Data.Assignment = snap
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_SubscribeDeliversSnapshots(t *testing.T) {
	snap := &Snapshot{ID: "a-1", Reference: "A-100", Status: StatusAssigned, UpdatedAt: time.Now()}
	server := snapshotServer(t, snap)
	defer server.Close()

	client := NewClient(server.URL, nil, 10*time.Millisecond)

	var mu sync.Mutex
	var received []Snapshot
	cancel, err := client.Subscribe("cpo-1", func(s Snapshot) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) >= 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "a-1", received[0].ID)
	assert.Equal(t, StatusAssigned, received[0].Status)
	mu.Unlock()
}

func TestClient_CancelStopsDelivery(t *testing.T) {
	snap := &Snapshot{ID: "a-1", Status: StatusActive}
	server := snapshotServer(t, snap)
	defer server.Close()

	client := NewClient(server.URL, nil, 10*time.Millisecond)

	var mu sync.Mutex
	count := 0
	cancel, err := client.Subscribe("cpo-1", func(s Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.LessOrEqual(t, count, after+1, "at most one in-flight delivery after cancel")
	mu.Unlock()
}

func TestClient_ActiveAssignment(t *testing.T) {
	t.Run("returns active assignment", func(t *testing.T) {
		snap := &Snapshot{ID: "a-1", Status: StatusActive}
		server := snapshotServer(t, snap)
		defer server.Close()

		client := NewClient(server.URL, nil, time.Second)
		got, err := client.ActiveAssignment(context.Background(), "cpo-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a-1", got.ID)
	})

	t.Run("nil when nothing is active", func(t *testing.T) {
		server := snapshotServer(t, nil)
		defer server.Close()

		client := NewClient(server.URL, nil, time.Second)
		got, err := client.ActiveAssignment(context.Background(), "cpo-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("non-active status is filtered out", func(t *testing.T) {
		snap := &Snapshot{ID: "a-1", Status: StatusCompleted}
		server := snapshotServer(t, snap)
		defer server.Close()

		client := NewClient(server.URL, nil, time.Second)
		got, err := client.ActiveAssignment(context.Background(), "cpo-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestClient_FetchErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, time.Second)
		_, err := client.ActiveAssignment(context.Background(), "cpo-1")
		assert.Error(t, err)
	})

	t.Run("non-zero application code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(snapshotResponse{Code: 17})
		}))
		defer server.Close()

		client := NewClient(server.URL, nil, time.Second)
		_, err := client.ActiveAssignment(context.Background(), "cpo-1")
		assert.Error(t, err)
	})
}
