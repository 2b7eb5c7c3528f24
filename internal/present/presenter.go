// Package present turns delivered events into locally visible notifications,
// exactly once per event id regardless of which transport delivered them.
package present

import (
	"log"
	"sync"
	"time"

	"mcm-alerts-backend/internal/model"
)

const (
	seenCapacity       = 200
	defaultAutoDismiss = 10 * time.Second
)

// Notification is the channel-independent description of one presentation.
type Notification struct {
	ID                 string
	Title              string
	Body               string
	Priority           model.Priority
	RequireInteraction bool
	Vibrate            []int
}

// Notifier shows native OS-level notifications. Available reports whether
// permission is granted and a background registration is alive.
type Notifier interface {
	Available() bool
	Notify(n Notification) error
	Dismiss(id string)
}

// Banner shows in-app visual banners, the fallback channel.
type Banner interface {
	Show(n Notification)
	Dismiss(id string)
}

// Sounder plays the audible cue for a presentation.
type Sounder interface {
	Play(t Tone)
}

// Tone describes the audible cue. Pitch, duration and volume all rise with
// priority.
type Tone struct {
	FrequencyHz int
	Duration    time.Duration
	Volume      float64
}

// ToneFor maps a priority onto its audible cue.
func ToneFor(p model.Priority) Tone {
	switch p {
	case model.PriorityHigh:
		return Tone{FrequencyHz: 880, Duration: 600 * time.Millisecond, Volume: 1.0}
	case model.PriorityMedium:
		return Tone{FrequencyHz: 660, Duration: 300 * time.Millisecond, Volume: 0.7}
	default:
		return Tone{FrequencyHz: 440, Duration: 150 * time.Millisecond, Volume: 0.4}
	}
}

// Options configures a Presenter.
type Options struct {
	Notifier Notifier // optional
	Banner   Banner
	Sounder  Sounder // optional
	// AutoDismiss is how long low/medium presentations stay up.
	AutoDismiss time.Duration
}

type shownVia int

const (
	viaNotifier shownVia = iota
	viaBanner
)

// Presenter renders events through the best available channel, dedupes by
// event id, and manages auto-dismiss timers.
type Presenter struct {
	opts Options

	mu     sync.Mutex
	seen   *seenSet
	shown  map[string]shownVia
	timers map[string]*time.Timer
}

// NewPresenter creates a presenter.
func NewPresenter(opts Options) *Presenter {
	if opts.AutoDismiss <= 0 {
		opts.AutoDismiss = defaultAutoDismiss
	}
	return &Presenter{
		opts:   opts,
		seen:   newSeenSet(seenCapacity),
		shown:  make(map[string]shownVia),
		timers: make(map[string]*time.Timer),
	}
}

// Present renders the event once. A repeated id within the session is a
// no-op; the return value reports whether anything was shown.
func (p *Presenter) Present(event model.Event) bool {
	p.mu.Lock()
	if p.seen.Add(event.ID) {
		p.mu.Unlock()
		return false
	}

	n := Notification{
		ID:                 event.ID,
		Title:              event.Title,
		Body:               event.Body,
		Priority:           event.Priority,
		RequireInteraction: event.Priority.RequireInteraction(),
		Vibrate:            event.Priority.Vibration(),
	}

	via := viaBanner
	if p.opts.Notifier != nil && p.opts.Notifier.Available() {
		via = viaNotifier
	}
	p.shown[event.ID] = via

	if !n.RequireInteraction {
		id := event.ID
		p.timers[id] = time.AfterFunc(p.opts.AutoDismiss, func() {
			p.dismiss(id)
		})
	}
	p.mu.Unlock()

	if via == viaNotifier {
		if err := p.opts.Notifier.Notify(n); err != nil {
			log.Printf("present: native notification failed, falling back to banner: %v", err)
			p.mu.Lock()
			p.shown[event.ID] = viaBanner
			p.mu.Unlock()
			p.opts.Banner.Show(n)
		}
	} else {
		p.opts.Banner.Show(n)
	}

	if p.opts.Sounder != nil {
		p.opts.Sounder.Play(ToneFor(event.Priority))
	}
	return true
}

// Acknowledge dismisses a presentation explicitly. High priority
// presentations are only removed this way.
func (p *Presenter) Acknowledge(id string) {
	p.dismiss(id)
}

// Stop cancels every pending auto-dismiss timer.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
}

func (p *Presenter) dismiss(id string) {
	p.mu.Lock()
	if timer, ok := p.timers[id]; ok {
		timer.Stop()
		delete(p.timers, id)
	}
	via, ok := p.shown[id]
	delete(p.shown, id)
	p.mu.Unlock()

	if !ok {
		return
	}
	if via == viaNotifier {
		p.opts.Notifier.Dismiss(id)
	} else {
		p.opts.Banner.Dismiss(id)
	}
}
