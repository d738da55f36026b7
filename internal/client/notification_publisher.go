package client

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/repository"
)

// NotificationPublisher publishes approval workflow events to NATS for the
// notifications service, which renders and sends the customer emails.
//
// Subject convention: <prefix>.<event_type>
// Event types: approval_requested, approval_approved, approval_rejected,
//              payment_received
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt the workflow.
type NotificationPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	log           zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType      string         `json:"event_type"`
	SubjectKind    string         `json:"subject_kind,omitempty"`
	SubjectID      string         `json:"subject_id,omitempty"`
	ApprovalID     string         `json:"approval_id,omitempty"`
	RecipientEmail string         `json:"recipient_email,omitempty"`
	RecipientName  string         `json:"recipient_name,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing entirely.
func NewNotificationPublisher(conn *nats.Conn, subjectPrefix string, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, subjectPrefix: subjectPrefix, log: log}
}

// PublishApprovalEvent publishes one workflow event. req may be nil for
// events not tied to a single approval record (payment confirmations).
func (p *NotificationPublisher) PublishApprovalEvent(ctx context.Context, eventType string, req *repository.ApprovalRequest, contact *repository.Contact, payload map[string]any) {
	if p.conn == nil {
		return
	}

	event := &NotificationEvent{
		EventType: eventType,
		Payload:   payload,
	}
	if req != nil {
		event.SubjectKind = string(req.SubjectKind)
		event.SubjectID = req.SubjectID()
		event.ApprovalID = req.ID
	}
	if contact != nil {
		event.RecipientEmail = contact.Email
		event.RecipientName = contact.FullName()
	}

	if event.RecipientEmail == "" {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("event_type", eventType).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("event_type", eventType).
		Msg("notification: event published")
}
