package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/pkg/utils"
)

// BookingEventsQueue is the durable queue booking events are published to.
const BookingEventsQueue = "booking.events"

// Booking event types.
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is the JSON body of a queued booking event.
type BookingEvent struct {
	EventID        string               `json:"event_id"`
	Type           string               `json:"type"`
	BookingID      int64                `json:"booking_id"`
	Reference      string               `json:"reference"`
	RestaurantID   int64                `json:"restaurant_id"`
	TableID        string               `json:"table_id"`
	Date           string               `json:"date"`
	StartTime      string               `json:"start_time"`
	EndTime        string               `json:"end_time"`
	GuestCount     int                  `json:"guest_count"`
	Status         models.BookingStatus `json:"status"`
	PreviousStatus models.BookingStatus `json:"previous_status,omitempty"`
	Action         string               `json:"action,omitempty"`
	FinalPrice     int                  `json:"final_price,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes booking events to RabbitMQ.
type AMQPPublisher struct {
	mu     sync.Mutex
	url    string
	conn   *amqp.Connection
	ch     amqpChannel
	queue  string
	now    func() time.Time
	closed bool
}

// NewAMQPPublisher dials the broker and declares the events queue.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, queue: BookingEventsQueue, now: time.Now}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) BookingCreated(ctx context.Context, b *models.Booking) error {
	return p.publish(ctx, p.event(EventBookingCreated, b, ""))
}

func (p *AMQPPublisher) BookingStatusChanged(ctx context.Context, b *models.Booking, previous models.BookingStatus) error {
	return p.publish(ctx, p.event(EventBookingStatusChanged, b, previous))
}

func (p *AMQPPublisher) event(kind string, b *models.Booking, previous models.BookingStatus) BookingEvent {
	ev := BookingEvent{
		EventID:        uuid.NewString(),
		Type:           kind,
		BookingID:      b.ID,
		Reference:      b.Reference,
		RestaurantID:   b.RestaurantID,
		TableID:        b.TableCode,
		Date:           b.BookingDate,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		GuestCount:     b.GuestCount,
		Status:         b.Status,
		PreviousStatus: previous,
		Action:         lastAction(b),
		OccurredAt:     p.now().UTC(),
	}
	if b.Pricing != nil {
		ev.FinalPrice = b.Pricing.FinalPrice
	}
	return ev
}

func (p *AMQPPublisher) publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.send(ctx, msg)
	if err == nil || p.closed || p.url == "" || !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	utils.LogWarn("rabbitmq channel closed, reconnecting", map[string]interface{}{"queue": p.queue})
	if err := p.connect(); err != nil {
		return err
	}
	return p.send(ctx, msg)
}

func (p *AMQPPublisher) send(ctx context.Context, msg amqp.Publishing) error {
	if p.ch == nil {
		return amqp.ErrClosed
	}
	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", msg.Type, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	p.closed = true
	return errors.Join(errs...)
}
