package present

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcm-alerts-backend/internal/model"
)

type fakeNotifier struct {
	mu        sync.Mutex
	available bool
	failNext  bool
	shown     []Notification
	dismissed []string
}

func (f *fakeNotifier) Available() bool { return f.available }

func (f *fakeNotifier) Notify(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("notification center unavailable")
	}
	f.shown = append(f.shown, n)
	return nil
}

func (f *fakeNotifier) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
}

type fakeBanner struct {
	mu        sync.Mutex
	shown     []Notification
	dismissed []string
}

func (f *fakeBanner) Show(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
}

func (f *fakeBanner) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
}

func (f *fakeBanner) shownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func (f *fakeBanner) dismissedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dismissed...)
}

type fakeSounder struct {
	mu    sync.Mutex
	tones []Tone
}

func (f *fakeSounder) Play(t Tone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tones = append(f.tones, t)
}

func event(id string, p model.Priority) model.Event {
	return model.Event{ID: id, Title: "t", Body: "b", Priority: p}
}

func TestPresent_IdempotentPerEventID(t *testing.T) {
	banner := &fakeBanner{}
	p := NewPresenter(Options{Banner: banner})
	defer p.Stop()

	assert.True(t, p.Present(event("e1", model.PriorityLow)))
	assert.False(t, p.Present(event("e1", model.PriorityLow)))
	assert.Equal(t, 1, banner.shownCount())
}

func TestPresent_ChannelChoice(t *testing.T) {
	t.Run("native when available", func(t *testing.T) {
		notifier := &fakeNotifier{available: true}
		banner := &fakeBanner{}
		p := NewPresenter(Options{Notifier: notifier, Banner: banner})
		defer p.Stop()

		p.Present(event("e1", model.PriorityHigh))
		assert.Len(t, notifier.shown, 1)
		assert.Equal(t, 0, banner.shownCount())
	})

	t.Run("banner when native unavailable", func(t *testing.T) {
		notifier := &fakeNotifier{available: false}
		banner := &fakeBanner{}
		p := NewPresenter(Options{Notifier: notifier, Banner: banner})
		defer p.Stop()

		p.Present(event("e1", model.PriorityHigh))
		assert.Empty(t, notifier.shown)
		assert.Equal(t, 1, banner.shownCount())
	})

	t.Run("banner when native fails", func(t *testing.T) {
		notifier := &fakeNotifier{available: true, failNext: true}
		banner := &fakeBanner{}
		p := NewPresenter(Options{Notifier: notifier, Banner: banner})
		defer p.Stop()

		p.Present(event("e1", model.PriorityHigh))
		assert.Equal(t, 1, banner.shownCount())
	})
}

func TestPresent_NotificationCarriesPriorityRules(t *testing.T) {
	banner := &fakeBanner{}
	p := NewPresenter(Options{Banner: banner})
	defer p.Stop()

	p.Present(event("hi", model.PriorityHigh))
	p.Present(event("lo", model.PriorityLow))

	require.Equal(t, 2, banner.shownCount())
	assert.True(t, banner.shown[0].RequireInteraction)
	assert.Equal(t, []int{300, 100, 300, 100, 300}, banner.shown[0].Vibrate)
	assert.False(t, banner.shown[1].RequireInteraction)
	assert.Equal(t, []int{100}, banner.shown[1].Vibrate)
}

func TestToneFor_MonotonicInPriority(t *testing.T) {
	low := ToneFor(model.PriorityLow)
	medium := ToneFor(model.PriorityMedium)
	high := ToneFor(model.PriorityHigh)

	assert.Less(t, low.FrequencyHz, medium.FrequencyHz)
	assert.Less(t, medium.FrequencyHz, high.FrequencyHz)
	assert.Less(t, low.Duration, medium.Duration)
	assert.Less(t, medium.Duration, high.Duration)
	assert.Less(t, low.Volume, medium.Volume)
	assert.Less(t, medium.Volume, high.Volume)
}

func TestPresent_PlaysTone(t *testing.T) {
	banner := &fakeBanner{}
	sounder := &fakeSounder{}
	p := NewPresenter(Options{Banner: banner, Sounder: sounder})
	defer p.Stop()

	p.Present(event("e1", model.PriorityHigh))
	require.Len(t, sounder.tones, 1)
	assert.Equal(t, ToneFor(model.PriorityHigh), sounder.tones[0])
}

func TestPresent_AutoDismissLowAndMediumOnly(t *testing.T) {
	banner := &fakeBanner{}
	p := NewPresenter(Options{Banner: banner, AutoDismiss: 20 * time.Millisecond})
	defer p.Stop()

	p.Present(event("lo", model.PriorityLow))
	p.Present(event("hi", model.PriorityHigh))

	assert.Eventually(t, func() bool {
		ids := banner.dismissedIDs()
		return len(ids) == 1 && ids[0] == "lo"
	}, time.Second, 5*time.Millisecond)

	// High priority stays until acknowledged.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"lo"}, banner.dismissedIDs())

	p.Acknowledge("hi")
	assert.Equal(t, []string{"lo", "hi"}, banner.dismissedIDs())
}

func TestPresenter_StopCancelsTimers(t *testing.T) {
	banner := &fakeBanner{}
	p := NewPresenter(Options{Banner: banner, AutoDismiss: 20 * time.Millisecond})

	p.Present(event("lo", model.PriorityLow))
	p.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, banner.dismissedIDs())
}

func TestSeenSet_BoundedEviction(t *testing.T) {
	s := newSeenSet(200)
	for i := 0; i < 201; i++ {
		assert.False(t, s.Add(fmt.Sprintf("id-%d", i)))
	}
	assert.Equal(t, 200, s.Len())

	// The oldest id was evicted and can be added again.
	assert.False(t, s.Add("id-0"))
	// A recent id is still deduplicated.
	assert.True(t, s.Add("id-200"))
}
