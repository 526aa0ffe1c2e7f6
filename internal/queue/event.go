// Package queue defines the auth events exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "time"

// AuthEventsQueue is the durable queue carrying AuthEvent messages.
const AuthEventsQueue = "auth.events"

type EventType string

const (
	EventUserRegistered  EventType = "user.registered"
	EventLogin           EventType = "user.login"
	EventLoginFailed     EventType = "user.login_failed"
	EventRefreshed       EventType = "session.refreshed"
	EventRefreshRejected EventType = "session.refresh_rejected"
	EventLogout          EventType = "session.logout"
)

// AuthEvent is published after every session operation. It carries enough
// context for audit logging without a database lookup and never contains a
// secret or hash.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	Reason     string    `json:"reason,omitempty"` // error code for rejections
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
