// Package events publishes diagnosis lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeDiagnosisCompleted = "diagnosis.completed"
	TypeScanDeleted        = "scan.deleted"
	TypeReportGenerated    = "report.generated"
)

// Event is the message body written to the topic.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	UserID       uuid.UUID  `json:"user_id"`
	ScanID       *uuid.UUID `json:"scan_id,omitempty"`
	PredictionID *uuid.UUID `json:"prediction_id,omitempty"`
	Label        string     `json:"label,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	Severity     string     `json:"severity,omitempty"`
	ReportKind   string     `json:"report_kind,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Publisher sends events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish, retries included.
const DefaultPublishTimeout = 3 * time.Second

// KafkaPublisher writes events keyed by user id, so one user's events stay
// ordered within a partition.
type KafkaPublisher struct {
	w       messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: DefaultPublishTimeout,
			MaxAttempts:  3,
		},
		timeout: DefaultPublishTimeout,
	}
}

// SetTimeout changes the per-event publish deadline.
func (p *KafkaPublisher) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// Publish writes e within the publish deadline. The event describes a
// committed change, so the caller's cancellation does not stop it.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(e.UserID.String()),
		Value:   body,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
		Time:    e.OccurredAt,
	}
	timeout := p.timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }
