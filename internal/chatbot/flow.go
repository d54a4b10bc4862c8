// Package chatbot runs the stateless conversational booking flow. Every turn re-encodes the
// choices made so far into the payload of the next buttons, so no session is kept server side.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"restaurant_booking_backend/internal/cache"
	"restaurant_booking_backend/internal/messaging"
	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// Flow actions carried in continuation payloads.
const (
	ActionStart          = "booking_start"
	ActionTime           = "booking_time"
	ActionGuests         = "booking_guests"
	ActionTables         = "booking_tables"
	ActionConfirm        = "booking_confirm"
	ActionComplete       = "booking_complete"
	ActionAbort          = "booking_abort"
	ActionStaffConfirm   = "staff_confirm"
	ActionStaffReject    = "staff_reject"
	ActionCustomerCancel = "customer_cancel"
	ActionMyBookings     = "my_bookings"
)

const (
	bookingDaysAhead = 7
	slotsPerPage     = 11
	maxTableChoices  = 10
	maxGuestChoice   = 4
	maxListedBooking = 10
)

const apologyText = "Sorry, something went wrong on our side. Please try again in a moment."

// Bookings is the part of the booking service the flow drives.
type Bookings interface {
	AvailableTables(ctx context.Context, restaurantID int64, date, start string, guests int) ([]models.FloorPlanTable, error)
	CreateBooking(ctx context.Context, req services.CreateBookingRequest) (*models.Booking, error)
	ListCustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error)
	RejectBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error)
}

// Quoter prices a prospective booking.
type Quoter interface {
	CalculatePrice(ctx context.Context, req models.PriceQuoteRequest) models.PricingResult
}

// Customers resolves chat users to customers.
type Customers interface {
	EnsureCustomer(ctx context.Context, lineUserID string, displayName *string) (*models.Customer, error)
}

// StaffDirectory resolves chat users to staff accounts.
type StaffDirectory interface {
	StaffByLineUserID(ctx context.Context, lineUserID string) (*models.User, error)
}

// Restaurants provides opening hours and the floor plan image.
type Restaurants interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
}

// Deps are the collaborators of a Flow.
type Deps struct {
	Bookings     Bookings
	Pricing      Quoter
	Customers    Customers
	Staff        StaffDirectory
	Restaurants  Restaurants
	Messenger    messaging.Messenger
	Dedup        cache.EventDeduper
	RestaurantID int64
	Location     *time.Location
	Clock        func() time.Time
}

// Flow handles inbound chat events.
type Flow struct {
	bookings     Bookings
	pricing      Quoter
	customers    Customers
	staff        StaffDirectory
	restaurants  Restaurants
	messenger    messaging.Messenger
	dedup        cache.EventDeduper
	restaurantID int64
	loc          *time.Location
	now          func() time.Time
}

// NewFlow creates a Flow.
func NewFlow(d Deps) *Flow {
	f := &Flow{
		bookings:     d.Bookings,
		pricing:      d.Pricing,
		customers:    d.Customers,
		staff:        d.Staff,
		restaurants:  d.Restaurants,
		messenger:    d.Messenger,
		dedup:        d.Dedup,
		restaurantID: d.RestaurantID,
		loc:          d.Location,
		now:          d.Clock,
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// HandleEvent processes one inbound event. Redelivered events are dropped and failures end in a
// single apology message.
func (f *Flow) HandleEvent(ctx context.Context, ev messaging.InboundEvent) {
	fields := map[string]interface{}{"event_id": ev.ID, "type": ev.Type, "user": ev.UserID}

	if f.dedup != nil && ev.ID != "" {
		first, err := f.dedup.MarkProcessed(ctx, ev.ID)
		if err != nil {
			utils.LogWarn("event dedup unavailable, processing anyway", fields)
		} else if !first {
			utils.LogDebug("duplicate chat event ignored", fields)
			return
		}
	}

	msgs, err := f.respond(ctx, ev)
	if err != nil {
		utils.LogError(err, "chat event handling failed", fields)
		msgs = []messaging.Message{messaging.Text(apologyText, startChoice())}
	}
	if len(msgs) == 0 {
		return
	}
	f.deliver(ctx, ev, msgs)
}

func (f *Flow) deliver(ctx context.Context, ev messaging.InboundEvent, msgs []messaging.Message) {
	fields := map[string]interface{}{"event_id": ev.ID, "user": ev.UserID}
	if ev.ReplyToken == "" {
		if ev.UserID == "" {
			return
		}
		if err := f.messenger.Push(ctx, ev.UserID, msgs...); err != nil {
			utils.LogError(err, "chat push failed", fields)
		}
		return
	}

	err := f.messenger.Reply(ctx, ev.ReplyToken, msgs...)
	if err == nil {
		return
	}
	if errors.Is(err, messaging.ErrReplyTokenUsed) {
		utils.LogDebug("reply token already used, skipping reply", fields)
		return
	}
	utils.LogError(err, "chat reply failed", fields)
	if ev.UserID == "" {
		return
	}
	if err := f.messenger.Push(ctx, ev.UserID, messaging.Text(apologyText)); err != nil {
		utils.LogError(err, "chat apology push failed", fields)
	}
}

func (f *Flow) respond(ctx context.Context, ev messaging.InboundEvent) ([]messaging.Message, error) {
	switch ev.Type {
	case messaging.EventFollow:
		return one(messaging.Text("Welcome! You can book a table with us right here in the chat.", startChoice(), myBookingsChoice())), nil
	case messaging.EventText:
		return f.handleText(ctx, ev)
	case messaging.EventPostback:
		c, ok := messaging.ParseContinuation(ev.Data)
		if !ok {
			return helpMessage(), nil
		}
		return f.handleAction(ctx, ev, c)
	}
	return nil, nil
}

func (f *Flow) handleText(ctx context.Context, ev messaging.InboundEvent) ([]messaging.Message, error) {
	switch strings.ToLower(strings.TrimSpace(ev.Text)) {
	case "book", "booking", "จองโต๊ะ":
		return f.showDates(), nil
	case "my bookings", "การจองของฉัน":
		return f.showMyBookings(ctx, ev)
	}
	return helpMessage(), nil
}

func (f *Flow) handleAction(ctx context.Context, ev messaging.InboundEvent, c messaging.Continuation) ([]messaging.Message, error) {
	switch c.Action {
	case ActionStart:
		return f.showDates(), nil
	case ActionTime:
		return f.showTimes(ctx, c)
	case ActionGuests:
		return f.showGuests(c), nil
	case ActionTables:
		return f.showTables(ctx, c)
	case ActionConfirm:
		return f.showSummary(ctx, c), nil
	case ActionComplete:
		return f.complete(ctx, ev, c)
	case ActionAbort:
		return one(messaging.Text("No problem, the booking was not made.", startChoice())), nil
	case ActionStaffConfirm, ActionStaffReject:
		return f.staffDecision(ctx, ev, c)
	case ActionCustomerCancel:
		return f.customerCancel(ctx, ev, c)
	case ActionMyBookings:
		return f.showMyBookings(ctx, ev)
	}
	return helpMessage(), nil
}

func (f *Flow) today() time.Time {
	return now.With(f.now().In(f.loc)).BeginningOfDay()
}

func (f *Flow) showDates() []messaging.Message {
	today := f.today()
	choices := make([]messaging.Choice, 0, bookingDaysAhead)
	for i := 0; i < bookingDaysAhead; i++ {
		day := today.AddDate(0, 0, i)
		date := utils.DateString(day)
		choices = append(choices, messaging.Choice{
			Label:       dayLabel(day, i),
			Data:        messaging.NewContinuation(ActionTime).With("date", date).Encode(),
			DisplayText: date,
		})
	}
	return one(messaging.Text("Which day would you like to book?", choices...))
}

func dayLabel(day time.Time, offset int) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	return day.Format("Mon 2 Jan")
}

func (f *Flow) showTimes(ctx context.Context, c messaging.Continuation) ([]messaging.Message, error) {
	day, err := utils.ParseDate(c.Get("date"), f.loc)
	if err != nil {
		return f.showDates(), nil
	}

	hours := models.DayHours{Open: models.DefaultOpenTime, Close: models.DefaultCloseTime}
	if r, err := f.restaurants.GetRestaurant(ctx, f.restaurantID); err != nil {
		utils.LogWarn("opening hours unavailable, using defaults", map[string]interface{}{"restaurant_id": f.restaurantID})
	} else {
		hours = r.OpeningHours.For(day.Weekday())
	}

	slots := GenerateSlots(hours, day, f.now().In(f.loc))
	if len(slots) == 0 {
		return one(messaging.Text(fmt.Sprintf("Sorry, there are no times left to book on %s. Please pick another day.", c.Get("date")), startChoice())), nil
	}

	page := c.Int("page", 0)
	pages := (len(slots) + slotsPerPage - 1) / slotsPerPage
	if page < 0 || page >= pages {
		page = 0
	}
	from := page * slotsPerPage
	to := from + slotsPerPage
	if to > len(slots) {
		to = len(slots)
	}

	base := c.With("page", "")
	choices := make([]messaging.Choice, 0, slotsPerPage+2)
	if page > 0 {
		choices = append(choices, messaging.Choice{Label: "« Earlier", Data: base.Next(ActionTime).With("page", fmt.Sprint(page-1)).Encode()})
	}
	for _, m := range slots[from:to] {
		clock := utils.FormatClock(m)
		choices = append(choices, messaging.Choice{
			Label:       clock,
			Data:        base.Next(ActionGuests).With("time", clock).Encode(),
			DisplayText: clock,
		})
	}
	if page+1 < pages {
		choices = append(choices, messaging.Choice{Label: "Later »", Data: base.Next(ActionTime).With("page", fmt.Sprint(page+1)).Encode()})
	}
	return one(messaging.Text(fmt.Sprintf("What time on %s?", c.Get("date")), choices...)), nil
}

func (f *Flow) showGuests(c messaging.Continuation) []messaging.Message {
	choices := make([]messaging.Choice, 0, maxGuestChoice)
	for n := 1; n <= maxGuestChoice; n++ {
		label := fmt.Sprint(n)
		if n == maxGuestChoice {
			label += "+"
		}
		choices = append(choices, messaging.Choice{
			Label:       label,
			Data:        c.Next(ActionTables).With("guests", fmt.Sprint(n)).Encode(),
			DisplayText: label + " guests",
		})
	}
	return one(messaging.Text("How many guests?", choices...))
}

func (f *Flow) showTables(ctx context.Context, c messaging.Continuation) ([]messaging.Message, error) {
	date, clock := c.Get("date"), c.Get("time")
	guests := c.Int("guests", 0)
	if date == "" || clock == "" || guests < 1 {
		return f.showDates(), nil
	}

	tables, err := f.bookings.AvailableTables(ctx, f.restaurantID, date, clock, guests)
	if err != nil {
		if errors.Is(err, services.ErrBookingValidation) {
			return f.showDates(), nil
		}
		return nil, err
	}
	if len(tables) == 0 {
		return one(messaging.Text(
			fmt.Sprintf("Sorry, no table for %d is free on %s at %s.", guests, date, clock),
			messaging.Choice{Label: "Other time", Data: c.Next(ActionTime).With("time", "").With("guests", "").Encode()},
			startChoice(),
		)), nil
	}
	if len(tables) > maxTableChoices {
		tables = tables[:maxTableChoices]
	}

	choices := make([]messaging.Choice, 0, len(tables))
	for _, t := range tables {
		label := fmt.Sprintf("%s (%d seats)", t.TableCode, t.Capacity)
		choices = append(choices, messaging.Choice{
			Label:       label,
			Data:        c.Next(ActionConfirm).With("table", t.TableCode).Encode(),
			DisplayText: "Table " + t.TableCode,
		})
	}

	msgs := []messaging.Message{}
	if r, err := f.restaurants.GetRestaurant(ctx, f.restaurantID); err == nil && r.FloorPlanImageURL != nil && *r.FloorPlanImageURL != "" {
		msgs = append(msgs, messaging.Message{ImageURL: *r.FloorPlanImageURL})
	}
	msgs = append(msgs, messaging.Text(fmt.Sprintf("Free tables on %s at %s. Pick one:", date, clock), choices...))
	return msgs, nil
}

func (f *Flow) showSummary(ctx context.Context, c messaging.Continuation) []messaging.Message {
	guests := c.Int("guests", 1)
	quote := f.pricing.CalculatePrice(ctx, models.PriceQuoteRequest{
		RestaurantID: f.restaurantID,
		TableID:      c.Get("table"),
		Date:         c.Get("date"),
		Time:         c.Get("time"),
		GuestCount:   guests,
	})

	var b strings.Builder
	b.WriteString("Please check your booking:\n")
	fmt.Fprintf(&b, "Date: %s\nTime: %s\nGuests: %d\nTable: %s\n", c.Get("date"), c.Get("time"), guests, c.Get("table"))
	fmt.Fprintf(&b, "Price: %d %s", quote.FinalPrice, quote.Currency)

	return one(messaging.Text(b.String(),
		messaging.Choice{Label: "Confirm", Data: c.Next(ActionComplete).Encode(), DisplayText: "Confirm booking"},
		messaging.Choice{Label: "Cancel", Data: messaging.NewContinuation(ActionAbort).Encode(), DisplayText: "Cancel"},
	))
}

func (f *Flow) complete(ctx context.Context, ev messaging.InboundEvent, c messaging.Continuation) ([]messaging.Message, error) {
	booking, err := f.bookings.CreateBooking(ctx, services.CreateBookingRequest{
		RestaurantID: f.restaurantID,
		TableID:      c.Get("table"),
		Date:         c.Get("date"),
		StartTime:    c.Get("time"),
		GuestCount:   c.Int("guests", 0),
		LineUserID:   ev.UserID,
		Source:       models.BookingSourceChat,
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrTableNoLongerAvailable):
		return one(messaging.Text(
			fmt.Sprintf("Sorry, table %s was just taken for that time. Please choose another table or time.", c.Get("table")),
			messaging.Choice{Label: "Other table", Data: c.Next(ActionTables).With("table", "").Encode()},
			messaging.Choice{Label: "Other time", Data: c.Next(ActionTime).With("table", "").With("time", "").With("guests", "").Encode()},
		)), nil
	case errors.Is(err, services.ErrTableNotFound):
		return one(messaging.Text("Sorry, that table is no longer offered. Please start again.", startChoice())), nil
	case errors.Is(err, services.ErrReferenceUnavailable):
		return one(messaging.Text("We are very busy right now. Please tap Try again.",
			messaging.Choice{Label: "Try again", Data: c.Encode()},
		)), nil
	case errors.Is(err, services.ErrBookingValidation):
		return one(messaging.Text("Sorry, this booking can no longer be made. "+userReason(err), startChoice())), nil
	default:
		return nil, err
	}

	price := ""
	if booking.Pricing != nil {
		price = fmt.Sprintf("\nPrice: %d %s", booking.Pricing.FinalPrice, booking.Pricing.Currency)
	}
	return one(messaging.Text(fmt.Sprintf(
		"Thank you! Your booking %s for %d on %s at %s (table %s) is waiting for confirmation by our staff.%s",
		booking.Reference, booking.GuestCount, booking.BookingDate, booking.StartTime, booking.TableCode, price,
	), myBookingsChoice())), nil
}

func (f *Flow) staffDecision(ctx context.Context, ev messaging.InboundEvent, c messaging.Continuation) ([]messaging.Message, error) {
	user, err := f.staff.StaffByLineUserID(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return one(messaging.Text("This action is only available to restaurant staff.")), nil
		}
		return nil, err
	}
	actor := models.Actor{UserID: user.ID, Role: user.Role, RestaurantID: user.RestaurantID}
	id := int64(c.Int("booking", 0))

	var booking *models.Booking
	verb := "confirmed"
	if c.Action == ActionStaffConfirm {
		booking, err = f.bookings.ConfirmBooking(ctx, id, actor)
	} else {
		verb = "rejected"
		booking, err = f.bookings.RejectBooking(ctx, id, actor, "rejected by staff")
	}
	switch {
	case err == nil:
		return one(messaging.Text(fmt.Sprintf("Booking %s %s. The customer has been notified.", booking.Reference, verb))), nil
	case errors.Is(err, services.ErrBookingNotPending), errors.Is(err, services.ErrBookingVersionConflict):
		return one(messaging.Text("This booking was already handled by someone else.")), nil
	case errors.Is(err, services.ErrBookingNotFound):
		return one(messaging.Text("Booking not found.")), nil
	case errors.Is(err, services.ErrPermissionDenied):
		return one(messaging.Text("You are not allowed to manage this booking.")), nil
	}
	return nil, err
}

func (f *Flow) customerActor(ctx context.Context, ev messaging.InboundEvent) (models.Actor, error) {
	customer, err := f.customers.EnsureCustomer(ctx, ev.UserID, nil)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{Role: models.ActorCustomer, CustomerID: &customer.ID}, nil
}

func (f *Flow) customerCancel(ctx context.Context, ev messaging.InboundEvent, c messaging.Continuation) ([]messaging.Message, error) {
	actor, err := f.customerActor(ctx, ev)
	if err != nil {
		return nil, err
	}
	booking, err := f.bookings.CancelBooking(ctx, int64(c.Int("booking", 0)), actor, "cancelled by customer")
	switch {
	case err == nil:
		return one(messaging.Text(fmt.Sprintf("Your booking %s has been cancelled.", booking.Reference), startChoice())), nil
	case errors.Is(err, services.ErrCancellationWindowClosed):
		return one(messaging.Text("Confirmed bookings can't be cancelled less than 2 hours before the start. Please call the restaurant.")), nil
	case errors.Is(err, services.ErrBookingNotFound), errors.Is(err, services.ErrPermissionDenied):
		return one(messaging.Text("We couldn't find that booking under your account.")), nil
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return one(messaging.Text("This booking can no longer be cancelled.")), nil
	case errors.Is(err, services.ErrBookingVersionConflict):
		return one(messaging.Text("This booking was just updated. Please try again.", myBookingsChoice())), nil
	}
	return nil, err
}

func (f *Flow) showMyBookings(ctx context.Context, ev messaging.InboundEvent) ([]messaging.Message, error) {
	actor, err := f.customerActor(ctx, ev)
	if err != nil {
		return nil, err
	}
	bookings, err := f.bookings.ListCustomerBookings(ctx, *actor.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return one(messaging.Text("You have no upcoming bookings.", startChoice())), nil
	}
	if len(bookings) > maxListedBooking {
		bookings = bookings[:maxListedBooking]
	}

	var b strings.Builder
	b.WriteString("Your upcoming bookings:")
	choices := make([]messaging.Choice, 0, len(bookings))
	for _, bk := range bookings {
		fmt.Fprintf(&b, "\n%s: %s %s, table %s, %d guests (%s)", bk.Reference, bk.BookingDate, bk.StartTime, bk.TableCode, bk.GuestCount, bk.Status)
		choices = append(choices, messaging.Choice{
			Label:       "Cancel " + bk.Reference,
			Data:        messaging.NewContinuation(ActionCustomerCancel).With("booking", fmt.Sprint(bk.ID)).Encode(),
			DisplayText: "Cancel " + bk.Reference,
		})
	}
	return one(messaging.Text(b.String(), choices...)), nil
}

func userReason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return ""
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func startChoice() messaging.Choice {
	return messaging.Choice{Label: "Book a table", Data: messaging.NewContinuation(ActionStart).Encode(), DisplayText: "Book a table"}
}

func myBookingsChoice() messaging.Choice {
	return messaging.Choice{Label: "My bookings", Data: messaging.NewContinuation(ActionMyBookings).Encode(), DisplayText: "My bookings"}
}

func helpMessage() []messaging.Message {
	return one(messaging.Text("Type \"book\" to reserve a table or \"my bookings\" to see your reservations.", startChoice(), myBookingsChoice()))
}

func one(m messaging.Message) []messaging.Message {
	return []messaging.Message{m}
}
