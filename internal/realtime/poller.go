package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"mcm-alerts-backend/internal/model"
)

// Poller is the last-resort transport: it periodically fetches events newer
// than a cursor and advances the cursor to the newest timestamp seen. It is
// also the only mechanism that recovers events committed while the streaming
// transports were down.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	cursor   time.Time
}

// NewPoller creates a poller against the poll endpoint URL.
func NewPoller(pollURL string, interval time.Duration) *Poller {
	return &Poller{
		url:      pollURL,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetSince positions the cursor. Without it the first poll starts from the
// moment Run is called.
func (p *Poller) SetSince(t time.Time) {
	p.cursor = t
}

// Run polls until the context is cancelled, emitting each fetched event.
func (p *Poller) Run(ctx context.Context, emit func(model.Event)) {
	if p.cursor.IsZero() {
		p.cursor = time.Now().UTC()
	}

	p.PollOnce(ctx, emit)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.PollOnce(ctx, emit)
			timer.Reset(p.interval)
		}
	}
}

// PollOnce performs a single fetch and cursor advance.
func (p *Poller) PollOnce(ctx context.Context, emit func(model.Event)) {
	events, err := p.fetch(ctx)
	if err != nil {
		log.Printf("realtime: poll failed: %v", err)
		return
	}
	for _, event := range events {
		if event.CreatedAt.After(p.cursor) {
			p.cursor = event.CreatedAt
		}
		emit(event)
	}
}

func (p *Poller) fetch(ctx context.Context) ([]model.Event, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("since", p.cursor.Format(time.RFC3339Nano))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var events []model.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return events, nil
}
