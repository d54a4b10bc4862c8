package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/internal/models"
)

type pushed struct {
	to   string
	msgs []messaging.Message
}

type fakeMessenger struct {
	pushes  []pushed
	failFor string
}

func (m *fakeMessenger) Reply(context.Context, string, ...messaging.Message) error { return nil }

func (m *fakeMessenger) Push(_ context.Context, to string, msgs ...messaging.Message) error {
	if to == m.failFor {
		return errors.New("push rejected")
	}
	m.pushes = append(m.pushes, pushed{to: to, msgs: msgs})
	return nil
}

type fakeCustomers map[int64]*models.Customer

func (c fakeCustomers) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	if cu, ok := c[id]; ok {
		return cu, nil
	}
	return nil, errors.New("customer not found")
}

type countingNotifier struct {
	created, changed int
	err              error
}

func (n *countingNotifier) BookingCreated(context.Context, *models.Booking) error {
	n.created++
	return n.err
}

func (n *countingNotifier) BookingStatusChanged(context.Context, *models.Booking, models.BookingStatus) error {
	n.changed++
	return n.err
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func sampleBooking() *models.Booking {
	customerID := int64(7)
	return &models.Booking{
		ID:           42,
		Reference:    "BK250614001",
		RestaurantID: 1,
		CustomerID:   &customerID,
		TableCode:    "T4",
		BookingDate:  "2025-06-14",
		StartTime:    "19:00",
		EndTime:      "21:00",
		GuestCount:   2,
		Status:       models.BookingStatusPending,
		Pricing:      &models.PricingResult{FinalPrice: 161, Currency: "THB"},
	}
}

func TestFanoutCallsEveryNotifier(t *testing.T) {
	failing := &countingNotifier{err: errors.New("broker down")}
	ok := &countingNotifier{}
	f := NewFanout(failing, nil, ok)

	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	if err := f.BookingCreated(context.Background(), sampleBooking()); err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Errorf("error = %v, want the failing notifier's error", err)
	}
	if ok.created != 1 || failing.created != 1 {
		t.Errorf("created calls = %d/%d, want 1/1", failing.created, ok.created)
	}
	if err := NewFanout(ok).BookingStatusChanged(context.Background(), sampleBooking(), models.BookingStatusPending); err != nil {
		t.Errorf("error = %v", err)
	}
}

func TestLineNotifierStaffButtons(t *testing.T) {
	m := &fakeMessenger{failFor: "U-off"}
	n := NewLineNotifier(m, fakeCustomers{}, []string{"U-staff1", "U-off", "U-staff2"})

	err := n.BookingCreated(context.Background(), sampleBooking())
	if err == nil {
		t.Error("expected the failed push to be reported")
	}
	if len(m.pushes) != 2 {
		t.Fatalf("pushes = %d, want 2", len(m.pushes))
	}
	msg := m.pushes[0].msgs[0]
	if !strings.Contains(msg.Text, "BK250614001") || !strings.Contains(msg.Text, "161 THB") {
		t.Errorf("summary = %q", msg.Text)
	}
	if len(msg.Choices) != 2 ||
		msg.Choices[0].Data != "action=staff_confirm&booking=42" ||
		msg.Choices[1].Data != "action=staff_reject&booking=42" {
		t.Errorf("choices = %+v", msg.Choices)
	}
}

func TestLineNotifierCustomerUpdates(t *testing.T) {
	tests := []struct {
		name     string
		status   models.BookingStatus
		action   string
		want     string
		wantPush bool
	}{
		{"confirmed", models.BookingStatusConfirmed, models.HistoryActionConfirmed, "is confirmed", true},
		{"rejected", models.BookingStatusCancelled, models.HistoryActionRejected, "could not accept", true},
		{"cancelled", models.BookingStatusCancelled, models.HistoryActionCancelled, "has been cancelled", true},
		{"completed is silent", models.BookingStatusCompleted, models.HistoryActionCompleted, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{}
			n := NewLineNotifier(m, fakeCustomers{7: {ID: 7, LineUserID: "U-guest"}}, nil)
			b := sampleBooking()
			b.Status = tt.status
			b.History = models.BookingHistory{{Action: tt.action, At: time.Now()}}

			if err := n.BookingStatusChanged(context.Background(), b, models.BookingStatusPending); err != nil {
				t.Fatal(err)
			}
			if !tt.wantPush {
				if len(m.pushes) != 0 {
					t.Errorf("pushes = %+v, want none", m.pushes)
				}
				return
			}
			if len(m.pushes) != 1 || m.pushes[0].to != "U-guest" || !strings.Contains(m.pushes[0].msgs[0].Text, tt.want) {
				t.Errorf("pushes = %+v, want %q to U-guest", m.pushes, tt.want)
			}
		})
	}
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	at := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	p := &AMQPPublisher{ch: ch, queue: BookingEventsQueue, now: func() time.Time { return at }}

	b := sampleBooking()
	b.Status = models.BookingStatusConfirmed
	b.History = models.BookingHistory{{Action: models.HistoryActionConfirmed, At: at}}
	if err := p.BookingStatusChanged(context.Background(), b, models.BookingStatusPending); err != nil {
		t.Fatal(err)
	}

	if len(ch.published) != 1 || ch.keys[0] != BookingEventsQueue {
		t.Fatalf("published = %d to %v", len(ch.published), ch.keys)
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.Type != EventBookingStatusChanged {
		t.Errorf("publishing = %+v", msg)
	}
	var ev BookingEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.BookingID != 42 || ev.Status != models.BookingStatusConfirmed || ev.PreviousStatus != models.BookingStatusPending ||
		ev.Action != models.HistoryActionConfirmed || ev.FinalPrice != 161 || !ev.OccurredAt.Equal(at) || ev.EventID != msg.MessageId {
		t.Errorf("event = %+v", ev)
	}
}

func TestAMQPPublisherClosed(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{}, queue: BookingEventsQueue, now: time.Now}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.BookingCreated(context.Background(), sampleBooking()); !errors.Is(err, amqp.ErrClosed) {
		t.Errorf("error = %v, want amqp.ErrClosed", err)
	}
}
