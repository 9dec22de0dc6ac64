package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Client polls the assignment backend over HTTP and fans snapshots out to
// subscribers. One polling goroutine runs per subscribed officer.
type Client struct {
	url      string
	headers  map[string]string
	interval time.Duration
	client   *http.Client

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewClient creates a polling client against the assignment backend.
func NewClient(url string, headers map[string]string, interval time.Duration) *Client {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Client{
		url:      url,
		headers:  headers,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		cancels:  make(map[string]context.CancelFunc),
	}
}

type snapshotResponse struct {
	Code int `json:"code"`
	Data struct {
		Assignment *Snapshot `json:"assignment"`
	} `json:"data"`
}

// Subscribe starts polling for the officer and invokes onChange with each
// fetched snapshot. The observer deduplicates repeated states, so every
// poll result is delivered as-is. Calling cancel stops the polling
// goroutine; a second Subscribe for the same officer replaces the first.
func (c *Client) Subscribe(cpoID string, onChange func(Snapshot)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if prev, ok := c.cancels[cpoID]; ok {
		prev()
	}
	c.cancels[cpoID] = cancel
	c.mu.Unlock()

	go c.poll(ctx, cpoID, onChange)

	return func() {
		c.mu.Lock()
		if c.cancels[cpoID] != nil {
			c.cancels[cpoID]()
			delete(c.cancels, cpoID)
		}
		c.mu.Unlock()
	}, nil
}

func (c *Client) poll(ctx context.Context, cpoID string, onChange func(Snapshot)) {
	c.pollOnce(ctx, cpoID, onChange)

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.pollOnce(ctx, cpoID, onChange)
			timer.Reset(c.interval)
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, cpoID string, onChange func(Snapshot)) {
	snap, err := c.fetch(ctx, cpoID, "")
	if err != nil {
		log.Printf("assignment: poll for officer %s failed: %v", cpoID, err)
		return
	}
	if snap != nil {
		onChange(*snap)
	}
}

// ActiveAssignment fetches the officer's current assignment and returns it
// only when it is in the active status.
func (c *Client) ActiveAssignment(ctx context.Context, cpoID string) (*Snapshot, error) {
	snap, err := c.fetch(ctx, cpoID, string(StatusActive))
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.Status != StatusActive {
		return nil, nil
	}
	return snap, nil
}

func (c *Client) fetch(ctx context.Context, cpoID, status string) (*Snapshot, error) {
	url := fmt.Sprintf("%s?cpo_id=%s", c.url, cpoID)
	if status != "" {
		url += "&status=" + status
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var snapResp snapshotResponse
	if err := json.Unmarshal(body, &snapResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment response: %w", err)
	}
	if snapResp.Code != 0 {
		return nil, fmt.Errorf("assignment API returned non-zero application code: %d", snapResp.Code)
	}

	return snapResp.Data.Assignment, nil
}
