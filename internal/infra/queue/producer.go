package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

// DeadLetterPayload is what operators' tooling consumes from q.leads.dead.
// It carries enough contact data for manual follow-up and nothing else.
type DeadLetterPayload struct {
	ID           string    `json:"id"`
	TargetSinkID string    `json:"target_sink_id"`
	Reason       string    `json:"reason"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"created_at"`
	LastAttempt  time.Time `json:"last_attempt"`

	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	PropertyCode string `json:"property_code,omitempty"`
	Intent       string `json:"intent,omitempty"`
}

func NewDeadLetterPayload(e entity.QueuedLead) DeadLetterPayload {
	return DeadLetterPayload{
		ID:           e.ID,
		TargetSinkID: e.TargetSinkID,
		Reason:       e.DeadReason,
		Attempts:     e.Attempts,
		MaxAttempts:  e.MaxAttempts,
		Error:        e.Error,
		CreatedAt:    e.CreatedAt,
		LastAttempt:  e.LastAttempt,
		Name:         e.Lead.Name,
		Email:        e.Lead.Email,
		Phone:        e.Lead.Phone,
		PropertyCode: e.Lead.PropertyCode,
		Intent:       string(e.Lead.Intent),
	}
}

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type DeadLetterProducer struct {
	Ch Publisher
}

func NewDeadLetterProducer(ch Publisher) *DeadLetterProducer {
	return &DeadLetterProducer{Ch: ch}
}

func (p *DeadLetterProducer) NotifyDeadLetter(ctx context.Context, entry entity.QueuedLead) error {
	body, err := json.Marshal(NewDeadLetterPayload(entry))
	if err != nil {
		return fmt.Errorf("erro ao converter payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		DeadLetterExchange,
		DeadLetterRoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    entry.ID,
			Timestamp:    time.Now(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("falha ao publicar no RabbitMQ: %w", err)
	}
	return nil
}
