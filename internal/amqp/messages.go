package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mysubs/internal/core"
)

// EmailJobMessage asks the mail worker to render and send one notification.
// Payload holds the template data of Kind as JSON.
type EmailJobMessage struct {
	Kind      core.NotificationKind `json:"kind"`
	To        string                `json:"to"`
	UserID    string                `json:"userId"`
	Payload   json.RawMessage       `json:"payload"`
	Timestamp time.Time             `json:"timestamp"`
	Attempt   int                   `json:"attempt"`
}

// NewEmailJobMessage encodes payload into a new job.
func NewEmailJobMessage(kind core.NotificationKind, to, userID string, payload any) (*EmailJobMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	msg := &EmailJobMessage{
		Kind:      kind,
		To:        to,
		UserID:    userID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *EmailJobMessage) Validate() error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid notification kind %q", m.Kind)
	}
	if m.To == "" {
		return errors.New("recipient is required")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *EmailJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EmailJobMessageFromJSON decodes and validates a queued job.
func EmailJobMessageFromJSON(data []byte) (*EmailJobMessage, error) {
	var msg EmailJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
