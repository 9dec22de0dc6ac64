package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Position is a single GPS fix.
type Position struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters"`
}

// Sample is a position with the time it was taken. Samples are ephemeral:
// the geofence monitor keeps one per assignment as its reference point and
// nothing ever persists them.
type Sample struct {
	Position
	TakenAt time.Time
}

// ErrUnavailable is returned when no position can be obtained within the
// timeout. Callers are expected to degrade to "no GPS attached".
var ErrUnavailable = errors.New("geo: position unavailable")

// Provider supplies one-shot, best-effort position reads for an officer.
type Provider interface {
	CurrentPosition(ctx context.Context, cpoID string) (Position, error)
}

// HTTPProvider queries the officer's device agent for its last known fix.
type HTTPProvider struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the device-agent endpoint. The
// timeout bounds the whole read; on expiry the read resolves to
// ErrUnavailable rather than blocking.
func NewHTTPProvider(url string, headers map[string]string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

type positionResponse struct {
	Code int      `json:"code"`
	Data Position `json:"data"`
}

// CurrentPosition fetches a one-shot fix for the given officer. Every
// failure mode (network, non-200, bad payload) collapses into
// ErrUnavailable so callers have a single degradation path.
func (p *HTTPProvider) CurrentPosition(ctx context.Context, cpoID string) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?cpo_id=%s", p.url, cpoID), nil)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for key, value := range p.headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var posResp positionResponse
	if err := json.Unmarshal(body, &posResp); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if posResp.Code != 0 {
		return Position{}, fmt.Errorf("%w: application code %d", ErrUnavailable, posResp.Code)
	}

	return posResp.Data, nil
}
