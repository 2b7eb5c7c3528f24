package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcm-alerts-backend/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	mu       sync.Mutex
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
	calls    []*webpush.Subscription
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sub)
	m.mu.Unlock()
	return m.SendFunc(payload, sub, options)
}

func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

// fakeStore is an in-memory stand-in for the persistence layer.
type fakeStore struct {
	mu        sync.Mutex
	subs      []model.Subscription
	removed   []string
	statsSent int
	statsFail int
	statsErr  error
}

func (f *fakeStore) ListSubscriptions(ctx context.Context, filterIDs []string) ([]model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(filterIDs) == 0 {
		return append([]model.Subscription(nil), f.subs...), nil
	}
	want := make(map[string]bool, len(filterIDs))
	for _, id := range filterIDs {
		want[id] = true
	}
	var out []model.Subscription
	for _, sub := range f.subs {
		if want[sub.ID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeStore) RemoveSubscription(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeStore) RecordDispatchStats(ctx context.Context, id string, sent, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return f.statsErr
	}
	f.statsSent, f.statsFail = sent, failed
	return nil
}

func testSub(id string) model.Subscription {
	return model.Subscription{
		ID:       id,
		Endpoint: "https://push.example.com/" + id,
		P256DH:   "p256dh-" + id,
		Auth:     "auth-" + id,
	}
}

func TestDispatch_NoRecipients(t *testing.T) {
	store := &fakeStore{}
	d := New(store, &webpush.Options{})
	d.SetSender(&mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		t.Fatal("sender must not be called with zero recipients")
		return nil, nil
	}})

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityLow}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.Success)
	assert.Equal(t, 0, report.Failed)
}

func TestDispatch_PermanentFailurePrunes(t *testing.T) {
	store := &fakeStore{subs: []model.Subscription{testSub("s1"), testSub("s2"), testSub("s3")}}
	d := New(store, &webpush.Options{})
	d.SetSender(&mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		if sub.Endpoint == "https://push.example.com/s2" {
			return pushResponse(http.StatusGone), nil
		}
		return pushResponse(http.StatusCreated), nil
	}})

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityMedium}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"s2"}, store.removed)
	assert.Equal(t, 2, store.statsSent)
	assert.Equal(t, 1, store.statsFail)

	var gone *Outcome
	for i := range report.PerRecipient {
		if !report.PerRecipient[i].Success {
			gone = &report.PerRecipient[i]
		}
	}
	require.NotNil(t, gone)
	assert.Equal(t, "s2", gone.SubscriptionID)
	assert.Equal(t, "gone", gone.ErrorCode)
}

func TestDispatch_TransientFailureKeepsSubscription(t *testing.T) {
	store := &fakeStore{subs: []model.Subscription{testSub("s1")}}
	d := New(store, &webpush.Options{})
	d.SetSender(&mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		return pushResponse(http.StatusInternalServerError), nil
	}})

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityLow}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, store.removed)
	assert.Equal(t, "http_500", report.PerRecipient[0].ErrorCode)
}

func TestDispatch_SendErrorIsIsolated(t *testing.T) {
	store := &fakeStore{subs: []model.Subscription{testSub("s1"), testSub("s2")}}
	d := New(store, &webpush.Options{})
	d.SetSender(&mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		if sub.Endpoint == "https://push.example.com/s1" {
			return nil, errors.New("connection reset")
		}
		return pushResponse(http.StatusCreated), nil
	}})

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityLow}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, store.removed)
}

func TestDispatch_TargetedDelivery(t *testing.T) {
	store := &fakeStore{subs: []model.Subscription{testSub("s1"), testSub("s2")}}
	d := New(store, &webpush.Options{})
	sender := &mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		return pushResponse(http.StatusCreated), nil
	}}
	d.SetSender(sender)

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityLow}, []string{"s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, "https://push.example.com/s2", sender.calls[0].Endpoint)
}

func TestDispatch_StatsFailureIsBestEffort(t *testing.T) {
	store := &fakeStore{
		subs:     []model.Subscription{testSub("s1")},
		statsErr: errors.New("db down"),
	}
	d := New(store, &webpush.Options{})
	d.SetSender(&mockSender{SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		return pushResponse(http.StatusCreated), nil
	}})

	report, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: model.PriorityLow}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Success)
}

func TestDispatch_PriorityOptions(t *testing.T) {
	testCases := []struct {
		priority    model.Priority
		wantTTL     int
		wantUrgency webpush.Urgency
	}{
		{model.PriorityHigh, 86400, webpush.UrgencyHigh},
		{model.PriorityMedium, 3600, webpush.UrgencyNormal},
		{model.PriorityLow, 3600, webpush.UrgencyNormal},
	}

	for _, tc := range testCases {
		t.Run(string(tc.priority), func(t *testing.T) {
			store := &fakeStore{subs: []model.Subscription{testSub("s1")}}
			d := New(store, &webpush.Options{Subscriber: "mailto:ops@example.com"})

			var gotOptions webpush.Options
			d.SetSender(&mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				gotOptions = *options
				return pushResponse(http.StatusCreated), nil
			}})

			_, err := d.Dispatch(context.Background(), model.Event{ID: "e1", Priority: tc.priority}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTTL, gotOptions.TTL)
			assert.Equal(t, tc.wantUrgency, gotOptions.Urgency)
			assert.Equal(t, "mailto:ops@example.com", gotOptions.Subscriber)
		})
	}
}

func TestBuildPayload_Table(t *testing.T) {
	testCases := []struct {
		priority        model.Priority
		wantInteraction bool
		wantVibrate     []int
	}{
		{model.PriorityHigh, true, []int{300, 100, 300, 100, 300}},
		{model.PriorityMedium, false, []int{200, 100, 200}},
		{model.PriorityLow, false, []int{100}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.priority), func(t *testing.T) {
			event := model.Event{
				ID:       "evt-1",
				Title:    "Site down",
				Body:     "prod-1 is unreachable",
				Type:     "alert",
				Priority: tc.priority,
				Metadata: model.JSONMap{"site": "prod-1"},
			}
			payload := BuildPayload(event)

			assert.Equal(t, "Site down", payload.Title)
			assert.Equal(t, "prod-1 is unreachable", payload.Body)
			assert.Equal(t, "mcm-evt-1", payload.Tag)
			assert.Equal(t, tc.wantInteraction, payload.RequireInteraction)
			assert.Equal(t, tc.wantVibrate, payload.Vibrate)
			assert.Equal(t, "evt-1", payload.Data["id"])

			// The payload must survive the trip onto the wire.
			raw, err := json.Marshal(payload)
			require.NoError(t, err)
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, tc.wantInteraction, decoded["requireInteraction"])
		})
	}
}
