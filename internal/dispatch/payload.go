package dispatch

import (
	"mcm-alerts-backend/internal/model"
)

const (
	iconPath  = "/mcm-logo.png"
	badgePath = "/mcm-logo.png"
)

// Payload is the JSON document delivered to the push service for one event.
type Payload struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Tag                string         `json:"tag"`
	RequireInteraction bool           `json:"requireInteraction"`
	Vibrate            []int          `json:"vibrate"`
	Data               map[string]any `json:"data,omitempty"`
}

// BuildPayload maps an event onto the push payload. The tag carries the event
// id so receivers can collapse duplicate deliveries across transports.
func BuildPayload(event model.Event) Payload {
	data := map[string]any{
		"id":       event.ID,
		"type":     event.Type,
		"priority": string(event.Priority),
	}
	if len(event.Metadata) > 0 {
		data["metadata"] = map[string]any(event.Metadata)
	}

	return Payload{
		Title:              event.Title,
		Body:               event.Body,
		Icon:               iconPath,
		Badge:              badgePath,
		Tag:                "mcm-" + event.ID,
		RequireInteraction: event.Priority.RequireInteraction(),
		Vibrate:            event.Priority.Vibration(),
		Data:               data,
	}
}
