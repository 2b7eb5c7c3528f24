package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"mcm-alerts-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is the slice of the persistence layer the dispatcher needs.
type Store interface {
	ListSubscriptions(ctx context.Context, filterIDs []string) ([]model.Subscription, error)
	RemoveSubscription(ctx context.Context, id string) error
	RecordDispatchStats(ctx context.Context, id string, sent, failed int) error
}

// Outcome records the result of one recipient's delivery attempt.
type Outcome struct {
	SubscriptionID string    `json:"subscriptionId"`
	Endpoint       string    `json:"endpoint"`
	Success        bool      `json:"success"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Report aggregates the per-recipient outcomes of one fan-out pass.
type Report struct {
	EventID      string    `json:"eventId"`
	Total        int       `json:"total"`
	Success      int       `json:"success"`
	Failed       int       `json:"failed"`
	PerRecipient []Outcome `json:"perRecipient"`
}

// Dispatcher delivers one event to every registered subscription.
type Dispatcher struct {
	store   Store
	options *webpush.Options
	sender  Sender
}

// New creates a dispatcher using the real web push sender.
func New(s Store, options *webpush.Options) *Dispatcher {
	return &Dispatcher{
		store:   s,
		options: options,
		sender:  &WebPushSender{},
	}
}

// SetSender replaces the push sender. Used by tests.
func (d *Dispatcher) SetSender(s Sender) {
	d.sender = s
}

// Dispatch resolves the target subscriptions and delivers the event to each of
// them concurrently. A single recipient's failure never aborts the batch; a
// "gone" class failure additionally prunes the subscription. Zero recipients
// is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event, targetIDs []string) (Report, error) {
	report := Report{EventID: event.ID}

	subs, err := d.store.ListSubscriptions(ctx, targetIDs)
	if err != nil {
		return report, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(subs) == 0 {
		return report, nil
	}

	payload, err := json.Marshal(BuildPayload(event))
	if err != nil {
		return report, fmt.Errorf("failed to build payload for event %s: %w", event.ID, err)
	}

	options := *d.options
	options.TTL = int(event.Priority.TTL().Seconds())
	options.Urgency = webpush.Urgency(event.Priority.Urgency())

	outcomes := make(chan Outcome, len(subs))
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub model.Subscription) {
			defer wg.Done()
			outcomes <- d.deliver(ctx, sub, payload, &options)
		}(sub)
	}
	wg.Wait()
	close(outcomes)

	report.Total = len(subs)
	for outcome := range outcomes {
		if outcome.Success {
			report.Success++
		} else {
			report.Failed++
		}
		report.PerRecipient = append(report.PerRecipient, outcome)
	}

	// Stat persistence is best-effort; the report stands on its own.
	if err := d.store.RecordDispatchStats(ctx, event.ID, report.Success, report.Failed); err != nil {
		log.Printf("dispatch: failed to record stats for event %s: %v", event.ID, err)
	}

	return report, nil
}

// deliver sends the payload to a single subscription and classifies the
// result. 404 and 410 responses mean the endpoint is permanently dead and the
// subscription is removed as a side effect.
func (d *Dispatcher) deliver(ctx context.Context, sub model.Subscription, payload []byte, options *webpush.Options) Outcome {
	outcome := Outcome{
		SubscriptionID: sub.ID,
		Endpoint:       sub.Endpoint,
		Timestamp:      time.Now(),
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := d.sender.Send(payload, wpSub, options)
	if err != nil {
		log.Printf("dispatch: error sending to %s: %v", sub.Endpoint, err)
		outcome.ErrorCode = "send_error"
		return outcome
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome.Success = true
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		log.Printf("dispatch: subscription for endpoint %s is expired, deleting", sub.Endpoint)
		if err := d.store.RemoveSubscription(ctx, sub.ID); err != nil {
			log.Printf("dispatch: failed to delete expired subscription %s: %v", sub.ID, err)
		}
		outcome.ErrorCode = "gone"
	default:
		outcome.ErrorCode = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return outcome
}
