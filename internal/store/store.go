package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mcm-alerts-backend/internal/model"
)

// ErrValidation is returned when a caller-supplied record is missing a
// required field. Handlers map it to a 400 response.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Keys carries the credential pair required by the web push transport.
type Keys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// NewEvent is the producer-supplied portion of an event record.
type NewEvent struct {
	Title    string
	Body     string
	Type     string
	Priority model.Priority
	Metadata model.JSONMap
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	RegisterSubscription(ctx context.Context, endpoint string, keys Keys, userAgent string) (model.Subscription, bool, error)
	ListSubscriptions(ctx context.Context, filterIDs []string) ([]model.Subscription, error)
	RemoveSubscription(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, ev NewEvent) (model.Event, error)
	ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error)
	ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error)
	AcknowledgeEvent(ctx context.Context, id string) error
	AcknowledgeAll(ctx context.Context) error
	RecordDispatchStats(ctx context.Context, id string, sent, failed int) error

	ListTopics(ctx context.Context) ([]model.Topic, error)
	CreateTopic(ctx context.Context, name, description string) (model.Topic, error)
	UpdateTopic(ctx context.Context, id string, name, description *string, enabled *bool) (model.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RegisterSubscription creates a subscription for a new endpoint, or touches
// the existing row when the endpoint is already registered. The second return
// value reports whether a new row was created.
func (s *gormStore) RegisterSubscription(ctx context.Context, endpoint string, keys Keys, userAgent string) (model.Subscription, bool, error) {
	if endpoint == "" {
		return model.Subscription{}, false, fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	if keys.P256DH == "" || keys.Auth == "" {
		return model.Subscription{}, false, fmt.Errorf("%w: subscription keys are required", ErrValidation)
	}

	var sub model.Subscription
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&sub, "endpoint = ?", endpoint).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = model.Subscription{
				ID:        uuid.NewString(),
				Endpoint:  endpoint,
				P256DH:    keys.P256DH,
				Auth:      keys.Auth,
				UserAgent: userAgent,
			}
			created = true
			return tx.Create(&sub).Error
		}
		if err != nil {
			return err
		}

		sub.P256DH = keys.P256DH
		sub.Auth = keys.Auth
		sub.UserAgent = userAgent
		sub.UpdatedAt = time.Now()
		return tx.Save(&sub).Error
	})
	if err != nil {
		return model.Subscription{}, false, fmt.Errorf("failed to register subscription: %w", err)
	}
	return sub, created, nil
}

// ListSubscriptions returns all subscriptions, or only those whose id is in
// filterIDs when the slice is non-empty.
func (s *gormStore) ListSubscriptions(ctx context.Context, filterIDs []string) ([]model.Subscription, error) {
	q := s.db.WithContext(ctx)
	if len(filterIDs) > 0 {
		q = q.Where("id IN ?", filterIDs)
	}
	var subs []model.Subscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// RemoveSubscription deletes a subscription. Deleting an absent row is not an
// error.
func (s *gormStore) RemoveSubscription(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Subscription{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to remove subscription %s: %w", id, err)
	}
	return nil
}

// CreateEvent validates and persists a new event record.
func (s *gormStore) CreateEvent(ctx context.Context, ev NewEvent) (model.Event, error) {
	if ev.Title == "" {
		return model.Event{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if ev.Body == "" {
		return model.Event{}, fmt.Errorf("%w: body is required", ErrValidation)
	}
	if ev.Type == "" {
		ev.Type = "alert"
	}
	if ev.Priority == "" {
		ev.Priority = model.PriorityMedium
	}
	if !ev.Priority.Valid() {
		return model.Event{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, ev.Priority)
	}

	event := model.Event{
		ID:       uuid.NewString(),
		Title:    ev.Title,
		Body:     ev.Body,
		Type:     ev.Type,
		Priority: ev.Priority,
		Metadata: ev.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return model.Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

// ListRecentEvents returns events ordered most recent first.
func (s *gormStore) ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []model.Event
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListEventsSince returns events created strictly after the given time, oldest
// first, for the polling fallback cursor.
func (s *gormStore) ListEventsSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	var events []model.Event
	if err := s.db.WithContext(ctx).Where("created_at > ?", since).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events since %s: %w", since.Format(time.RFC3339), err)
	}
	return events, nil
}

// AcknowledgeEvent marks a single event acknowledged. Acknowledging an already
// acknowledged event is a no-op.
func (s *gormStore) AcknowledgeEvent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).Update("acknowledged", true)
	if res.Error != nil {
		return fmt.Errorf("failed to acknowledge event %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return nil
}

// AcknowledgeAll marks every unacknowledged event acknowledged.
func (s *gormStore) AcknowledgeAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Model(&model.Event{}).Where("acknowledged = ?", false).Update("acknowledged", true).Error; err != nil {
		return fmt.Errorf("failed to acknowledge all events: %w", err)
	}
	return nil
}

// RecordDispatchStats updates the per-event delivery counters after a fan-out
// pass.
func (s *gormStore) RecordDispatchStats(ctx context.Context, id string, sent, failed int) error {
	err := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).
		Updates(map[string]any{"sent_count": sent, "failed_count": failed}).Error
	if err != nil {
		return fmt.Errorf("failed to record dispatch stats for event %s: %w", id, err)
	}
	return nil
}

// ListTopics returns all topics ordered by name.
func (s *gormStore) ListTopics(ctx context.Context) ([]model.Topic, error) {
	var topics []model.Topic
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// CreateTopic persists a new topic.
func (s *gormStore) CreateTopic(ctx context.Context, name, description string) (model.Topic, error) {
	if name == "" {
		return model.Topic{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	topic := model.Topic{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Enabled:     true,
	}
	if err := s.db.WithContext(ctx).Create(&topic).Error; err != nil {
		return model.Topic{}, fmt.Errorf("failed to create topic: %w", err)
	}
	return topic, nil
}

// UpdateTopic applies the non-nil fields to an existing topic and returns the
// updated record.
func (s *gormStore) UpdateTopic(ctx context.Context, id string, name, description *string, enabled *bool) (model.Topic, error) {
	updates := map[string]any{}
	if name != nil {
		if *name == "" {
			return model.Topic{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	if enabled != nil {
		updates["enabled"] = *enabled
	}

	var topic model.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&topic, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: topic %s", ErrNotFound, id)
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&topic).Updates(updates).Error
	})
	if err != nil {
		return model.Topic{}, err
	}
	return topic, nil
}

// DeleteTopic removes a topic. Deleting an absent topic is not an error.
func (s *gormStore) DeleteTopic(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Topic{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", id, err)
	}
	return nil
}
