// Package notify delivers booking lifecycle events to staff, customers and the event queue.
package notify

import (
	"context"
	"errors"
	"fmt"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
)

// Fanout forwards every event to all notifiers. One failing notifier does not stop the others.
type Fanout struct {
	notifiers []services.BookingNotifier
}

// NewFanout creates a Fanout over the non-nil notifiers.
func NewFanout(notifiers ...services.BookingNotifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Len returns the number of wired notifiers.
func (f *Fanout) Len() int { return len(f.notifiers) }

func (f *Fanout) BookingCreated(ctx context.Context, booking *models.Booking) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.BookingCreated(ctx, booking); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) BookingStatusChanged(ctx context.Context, booking *models.Booking, previous models.BookingStatus) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.BookingStatusChanged(ctx, booking, previous); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// lastAction returns the most recent history action, used to tell a rejection from a cancellation.
func lastAction(b *models.Booking) string {
	if len(b.History) == 0 {
		return ""
	}
	return b.History[len(b.History)-1].Action
}
