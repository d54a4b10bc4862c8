package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant_booking_backend/internal/chatbot"
	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/internal/models"
)

// CustomerLookup resolves the customer of a booking.
type CustomerLookup interface {
	GetCustomerByID(ctx context.Context, customerID int64) (*models.Customer, error)
}

// LineNotifier pushes new bookings to staff with decision buttons and status changes to the customer.
type LineNotifier struct {
	messenger    messaging.Messenger
	customers    CustomerLookup
	staffUserIDs []string
}

// NewLineNotifier creates a LineNotifier.
func NewLineNotifier(messenger messaging.Messenger, customers CustomerLookup, staffUserIDs []string) *LineNotifier {
	return &LineNotifier{messenger: messenger, customers: customers, staffUserIDs: staffUserIDs}
}

func (n *LineNotifier) BookingCreated(ctx context.Context, b *models.Booking) error {
	if len(n.staffUserIDs) == 0 {
		return nil
	}
	id := fmt.Sprint(b.ID)
	msg := messaging.Text(staffSummary(b),
		messaging.Choice{
			Label:       "Confirm",
			Data:        messaging.NewContinuation(chatbot.ActionStaffConfirm).With("booking", id).Encode(),
			DisplayText: "Confirm " + b.Reference,
		},
		messaging.Choice{
			Label:       "Reject",
			Data:        messaging.NewContinuation(chatbot.ActionStaffReject).With("booking", id).Encode(),
			DisplayText: "Reject " + b.Reference,
		},
	)

	var errs []error
	for _, to := range n.staffUserIDs {
		if err := n.messenger.Push(ctx, to, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *LineNotifier) BookingStatusChanged(ctx context.Context, b *models.Booking, previous models.BookingStatus) error {
	if b.CustomerID == nil || previous == b.Status {
		return nil
	}
	text := customerUpdate(b)
	if text == "" {
		return nil
	}
	customer, err := n.customers.GetCustomerByID(ctx, *b.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve customer %d: %w", *b.CustomerID, err)
	}
	if customer.LineUserID == "" {
		return nil
	}
	return n.messenger.Push(ctx, customer.LineUserID, messaging.Text(text))
}

func staffSummary(b *models.Booking) string {
	var s strings.Builder
	fmt.Fprintf(&s, "New booking %s\n", b.Reference)
	fmt.Fprintf(&s, "%s %s-%s, table %s, %d guests", b.BookingDate, b.StartTime, b.EndTime, b.TableCode, b.GuestCount)
	if b.Pricing != nil {
		fmt.Fprintf(&s, "\nPrice: %d %s", b.Pricing.FinalPrice, b.Pricing.Currency)
	}
	if b.SpecialRequests != nil && *b.SpecialRequests != "" {
		fmt.Fprintf(&s, "\nNote: %s", *b.SpecialRequests)
	}
	return s.String()
}

func customerUpdate(b *models.Booking) string {
	when := fmt.Sprintf("%s at %s", b.BookingDate, b.StartTime)
	switch b.Status {
	case models.BookingStatusConfirmed:
		return fmt.Sprintf("Your booking %s on %s is confirmed. See you soon!", b.Reference, when)
	case models.BookingStatusCancelled:
		if lastAction(b) == models.HistoryActionRejected {
			return fmt.Sprintf("Sorry, we could not accept your booking %s on %s. Please choose another time.", b.Reference, when)
		}
		return fmt.Sprintf("Your booking %s on %s has been cancelled.", b.Reference, when)
	}
	return ""
}
