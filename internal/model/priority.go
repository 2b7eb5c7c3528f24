package model

import "time"

// Priority classifies how urgently an event should be delivered and displayed.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the recognized priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// RequireInteraction reports whether a presentation of this priority must be
// dismissed explicitly by the user.
func (p Priority) RequireInteraction() bool {
	return p == PriorityHigh
}

// Vibration returns the vibration pattern in milliseconds for this priority.
func (p Priority) Vibration() []int {
	switch p {
	case PriorityHigh:
		return []int{300, 100, 300, 100, 300}
	case PriorityMedium:
		return []int{200, 100, 200}
	default:
		return []int{100}
	}
}

// TTL returns how long the push service should retain an undelivered message.
func (p Priority) TTL() time.Duration {
	if p == PriorityHigh {
		return 24 * time.Hour
	}
	return time.Hour
}

// Urgency returns the push transport urgency header value for this priority.
func (p Priority) Urgency() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}
