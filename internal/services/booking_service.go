package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

// --- Custom Service Errors for Booking ---
var (
	ErrBookingNotFound          = errors.New("booking not found")
	ErrBookingValidation        = errors.New("booking data validation error")
	ErrTableNotFound            = errors.New("table not found")
	ErrTableNoLongerAvailable   = errors.New("table is no longer available for the requested time")
	ErrInvalidStatusTransition  = errors.New("invalid booking status transition")
	ErrBookingNotPending        = errors.New("booking is no longer pending")
	ErrCancellationWindowClosed = errors.New("confirmed bookings cannot be cancelled within 2 hours of the start time")
	ErrBookingVersionConflict   = errors.New("booking was modified by someone else")
	ErrPermissionDenied         = errors.New("permission denied for this booking")
	ErrReferenceUnavailable     = errors.New("no booking reference could be allocated, please retry")
)

const (
	cancellationCutoff      = 2 * time.Hour
	maxReferenceAttempts    = 3
	maxVersionRetries       = 1
	customerBookingsPerPage = 10
)

// --- Booking DTOs ---
type CreateBookingRequest struct {
	RestaurantID    int64   `json:"restaurant_id" binding:"required"`
	TableID         string  `json:"table_id" binding:"required"`
	Date            string  `json:"date" binding:"required"`
	StartTime       string  `json:"start_time" binding:"required"`
	EndTime         string  `json:"end_time"`
	GuestCount      int     `json:"guest_count" binding:"required"`
	SpecialRequests *string `json:"special_requests"`
	LineUserID      string  `json:"line_user_id"`
	DisplayName     *string `json:"display_name"`
	CustomerID      *int64  `json:"-"`
	Source          string  `json:"-"`
}

type UpdateBookingRequest struct {
	SpecialRequests *string `json:"special_requests"`
	ExpectedVersion *int    `json:"expected_version" binding:"required"`
}

// BookingNotifier receives booking lifecycle events. Failures never fail the booking operation.
type BookingNotifier interface {
	BookingCreated(ctx context.Context, booking *models.Booking) error
	BookingStatusChanged(ctx context.Context, booking *models.Booking, previous models.BookingStatus) error
}

// --- BookingService Interface ---
type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	IsAvailable(ctx context.Context, restaurantID int64, tableCode, date, start, end string) (bool, error)
	AvailableTables(ctx context.Context, restaurantID int64, date, start string, guests int) ([]models.FloorPlanTable, error)
	GetBookingByID(ctx context.Context, bookingID int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, int, error)
	ListCustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, bookingID int64, actor models.Actor, req UpdateBookingRequest) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error)
	RejectBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error)
}

// --- bookingService Implementation ---
type bookingService struct {
	bookingRepo  repositories.BookingRepository
	floorRepo    repositories.FloorPlanRepository
	customerRepo repositories.CustomerRepository
	tx           repositories.Transactor
	pricing      PricingService
	notifier     BookingNotifier
	duration     time.Duration
	loc          *time.Location
	now          func() time.Time
}

// BookingServiceDeps groups the collaborators of the booking service.
type BookingServiceDeps struct {
	Bookings  repositories.BookingRepository
	FloorPlan repositories.FloorPlanRepository
	Customers repositories.CustomerRepository
	Tx        repositories.Transactor
	Pricing   PricingService
	Notifier  BookingNotifier
	Duration  time.Duration
	Location  *time.Location
	Clock     func() time.Time
}

// NewBookingService creates a new instance of BookingService.
func NewBookingService(deps BookingServiceDeps) BookingService {
	s := &bookingService{
		bookingRepo:  deps.Bookings,
		floorRepo:    deps.FloorPlan,
		customerRepo: deps.Customers,
		tx:           deps.Tx,
		pricing:      deps.Pricing,
		notifier:     deps.Notifier,
		duration:     deps.Duration,
		loc:          deps.Location,
		now:          deps.Clock,
	}
	if s.duration <= 0 {
		s.duration = 2 * time.Hour
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func creatorType(source string) string {
	if source == models.BookingSourceStaff {
		return models.RoleStaff
	}
	return models.ActorCustomer
}

// ReferencePrefix returns "BK" followed by the YYMMDD of t.
func ReferencePrefix(t time.Time) string {
	return "BK" + t.Format("060102")
}

// FormatReference renders a booking reference with a zero-padded daily sequence.
func FormatReference(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// resolveSlot parses date and clock strings into a date and a minute range.
// An empty end defaults to start plus the booking duration, capped at midnight.
func (s *bookingService) resolveSlot(date, start, end string) (time.Time, int, int, error) {
	day, err := utils.ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, 0, 0, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBookingValidation)
	}
	startMinute, err := utils.ParseClock(start)
	if err != nil || startMinute >= utils.MinutesPerDay {
		return time.Time{}, 0, 0, fmt.Errorf("%w: invalid start time %q", ErrBookingValidation, start)
	}
	var endMinute int
	if strings.TrimSpace(end) == "" {
		endMinute = startMinute + int(s.duration/time.Minute)
		if endMinute > utils.MinutesPerDay {
			endMinute = utils.MinutesPerDay
		}
	} else {
		endMinute, err = utils.ParseClock(end)
		if err != nil {
			return time.Time{}, 0, 0, fmt.Errorf("%w: invalid end time %q", ErrBookingValidation, end)
		}
	}
	if endMinute <= startMinute {
		return time.Time{}, 0, 0, fmt.Errorf("%w: end time must be after start time", ErrBookingValidation)
	}
	return day, startMinute, endMinute, nil
}

func (s *bookingService) IsAvailable(ctx context.Context, restaurantID int64, tableCode, date, start, end string) (bool, error) {
	day, startMinute, endMinute, err := s.resolveSlot(date, start, end)
	if err != nil {
		return false, err
	}
	active, err := s.bookingRepo.ListActiveBookings(ctx, restaurantID, utils.DateString(day), tableCode)
	if err != nil {
		return false, fmt.Errorf("failed to check table availability: %w", err)
	}
	for _, b := range active {
		if utils.RangesOverlap(b.StartMinute, b.EndMinute, startMinute, endMinute) {
			return false, nil
		}
	}
	return true, nil
}

// AvailableTables lists active tables seating guests with no overlapping booking, smallest first.
func (s *bookingService) AvailableTables(ctx context.Context, restaurantID int64, date, start string, guests int) ([]models.FloorPlanTable, error) {
	if guests < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrBookingValidation)
	}
	day, startMinute, endMinute, err := s.resolveSlot(date, start, "")
	if err != nil {
		return nil, err
	}

	tables, err := s.floorRepo.ListTables(ctx, restaurantID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	active, err := s.bookingRepo.ListActiveBookings(ctx, restaurantID, utils.DateString(day), "")
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	taken := map[string]bool{}
	for _, b := range active {
		if utils.RangesOverlap(b.StartMinute, b.EndMinute, startMinute, endMinute) {
			taken[b.TableCode] = true
		}
	}

	available := []models.FloorPlanTable{}
	for _, t := range tables {
		if t.Capacity >= guests && !taken[t.TableCode] {
			available = append(available, t)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Capacity != available[j].Capacity {
			return available[i].Capacity < available[j].Capacity
		}
		return available[i].TableCode < available[j].TableCode
	})
	return available, nil
}

func (s *bookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if req.RestaurantID <= 0 || strings.TrimSpace(req.TableID) == "" {
		return nil, fmt.Errorf("%w: restaurant and table are required", ErrBookingValidation)
	}
	if req.GuestCount < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrBookingValidation)
	}
	if req.CustomerID == nil && strings.TrimSpace(req.LineUserID) == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrBookingValidation)
	}
	day, startMinute, endMinute, err := s.resolveSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if utils.AtClock(day, startMinute, s.loc).Before(s.now()) {
		return nil, fmt.Errorf("%w: booking time is in the past", ErrBookingValidation)
	}

	table, err := s.floorRepo.GetTable(ctx, req.RestaurantID, req.TableID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, req.TableID)
		}
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	if !table.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, req.TableID)
	}
	if req.GuestCount > table.Capacity {
		return nil, fmt.Errorf("%w: %d guests exceed table capacity %d", ErrBookingValidation, req.GuestCount, table.Capacity)
	}

	date := utils.DateString(day)
	startStr, endStr := utils.FormatClock(startMinute), utils.FormatClock(endMinute)

	// Pre-check only; the database constraint decides under concurrency.
	available, err := s.IsAvailable(ctx, req.RestaurantID, table.TableCode, date, startStr, endStr)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrTableNoLongerAvailable
	}

	quote := s.pricing.CalculatePrice(ctx, models.PriceQuoteRequest{
		RestaurantID:  req.RestaurantID,
		TableID:       table.TableCode,
		Date:          date,
		Time:          startStr,
		GuestCount:    req.GuestCount,
		TableCapacity: table.Capacity,
		TableLocation: table.LocationOrEmpty(),
	})
	if quote.IsFallback() {
		utils.LogWarn("booking priced with fallback quote", map[string]interface{}{"restaurant_id": req.RestaurantID, "table_id": table.TableCode})
	}

	source := req.Source
	if source == "" {
		source = models.BookingSourceWeb
	}
	createdAt := s.now()
	floorPlanID := table.FloorPlanID
	booking := &models.Booking{
		RestaurantID:    req.RestaurantID,
		FloorPlanID:     &floorPlanID,
		CustomerID:      req.CustomerID,
		TableCode:       table.TableCode,
		BookingDate:     date,
		StartTime:       startStr,
		EndTime:         endStr,
		StartMinute:     startMinute,
		EndMinute:       endMinute,
		GuestCount:      req.GuestCount,
		Status:          models.BookingStatusPending,
		SpecialRequests: req.SpecialRequests,
		Pricing:         &quote,
		History:         models.BookingHistory{},
		Source:          source,
	}
	booking.AppendHistory(models.HistoryEntry{
		ID:        uuid.NewString(),
		Action:    models.HistoryActionCreated,
		ToStatus:  models.BookingStatusPending,
		ActorType: creatorType(source),
		At:        createdAt,
	})

	prefix := ReferencePrefix(createdAt.In(s.loc))
	var created *models.Booking
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if booking.CustomerID == nil {
				customer, err := s.customerRepo.FindOrCreateByLineUserID(ctx, exec, req.LineUserID, req.DisplayName)
				if err != nil {
					return err
				}
				booking.CustomerID = &customer.ID
			}
			seq, err := s.bookingRepo.MaxReferenceSequence(ctx, exec, prefix)
			if err != nil {
				return err
			}
			booking.Reference = FormatReference(prefix, seq+1)

			b, err := s.bookingRepo.CreateBooking(ctx, exec, booking)
			if err != nil {
				return err
			}
			if _, err := s.floorRepo.RefreshTableStatus(ctx, exec, b.RestaurantID, b.TableCode); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			created = b
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, repositories.ErrReferenceConflict) {
			utils.LogDebug("booking reference taken, retrying", map[string]interface{}{"reference": booking.Reference, "attempt": attempt})
			if req.CustomerID == nil {
				booking.CustomerID = nil
			}
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, repositories.ErrSlotConflict) {
			return nil, ErrTableNoLongerAvailable
		}
		if errors.Is(err, repositories.ErrReferenceConflict) {
			return nil, fmt.Errorf("%w: %v", ErrReferenceUnavailable, err)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	utils.LogInfo("booking created", map[string]interface{}{
		"booking_id": created.ID, "reference": created.Reference, "table_id": created.TableCode,
		"date": created.BookingDate, "start": created.StartTime, "final_price": quote.FinalPrice,
	})
	if s.notifier != nil {
		if err := s.notifier.BookingCreated(ctx, created); err != nil {
			utils.LogError(err, "booking created notification failed", map[string]interface{}{"booking_id": created.ID})
		}
	}
	return created, nil
}

func (s *bookingService) GetBookingByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking by ID: %w", err)
	}
	return booking, nil
}

func (s *bookingService) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetBookingByReference(ctx, strings.ToUpper(strings.TrimSpace(reference)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	return booking, nil
}

func (s *bookingService) GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}
	bookings, totalCount, err := s.bookingRepo.GetBookings(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get bookings: %w", err)
	}
	return bookings, totalCount, nil
}

// ListCustomerBookings returns the customer's active bookings from today on.
func (s *bookingService) ListCustomerBookings(ctx context.Context, customerID int64) ([]models.Booking, error) {
	today := utils.DateString(now.With(s.now().In(s.loc)).BeginningOfDay())
	bookings, _, err := s.bookingRepo.GetBookings(ctx, models.BookingFilters{
		CustomerID: &customerID,
		DateFrom:   &today,
		ActiveOnly: true,
		Page:       1,
		PageSize:   customerBookingsPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list customer bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) authorize(actor models.Actor, b *models.Booking, staffOnly bool) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsStaff():
		if actor.RestaurantID == nil || *actor.RestaurantID == b.RestaurantID {
			return nil
		}
	case !staffOnly && actor.CustomerID != nil && b.CustomerID != nil && *actor.CustomerID == *b.CustomerID:
		return nil
	}
	return ErrPermissionDenied
}

// slotStart is the booking's start instant in the restaurant's time zone.
func (s *bookingService) slotStart(b *models.Booking) time.Time {
	day, err := utils.ParseDate(b.BookingDate, s.loc)
	if err != nil {
		return time.Time{}
	}
	minute := b.StartMinute
	if m, err := utils.ParseClock(b.StartTime); err == nil {
		minute = m
	}
	return utils.AtClock(day, minute, s.loc)
}

type transition struct {
	to            models.BookingStatus
	action        string
	note          string
	staffOnly     bool
	releasesTable bool
	// guard rejects the transition for the freshly loaded booking. Returning errNoop ends without saving.
	guard func(b *models.Booking) error
}

var errNoop = errors.New("no-op transition")

func (s *bookingService) applyTransition(ctx context.Context, bookingID int64, actor models.Actor, t transition) (*models.Booking, error) {
	for attempt := 0; attempt <= maxVersionRetries; attempt++ {
		b, err := s.GetBookingByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(actor, b, t.staffOnly); err != nil {
			return nil, err
		}
		if t.guard != nil {
			if err := t.guard(b); err != nil {
				if errors.Is(err, errNoop) {
					return b, nil
				}
				return nil, err
			}
		}
		if !models.CanTransition(b.Status, t.to) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, b.Status, t.to)
		}

		previous := b.Status
		b.AppendHistory(models.HistoryEntry{
			ID:         uuid.NewString(),
			Action:     t.action,
			FromStatus: previous,
			ToStatus:   t.to,
			ActorType:  actor.Type(),
			ActorID:    actor.ID(),
			Note:       t.note,
			At:         s.now(),
		})
		to := t.to
		patch := models.BookingPatch{Status: &to, History: b.History}

		var updated *models.Booking
		err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			u, err := s.bookingRepo.UpdateWithExpectedVersion(ctx, exec, b.ID, patch, b.Version)
			if err != nil {
				return err
			}
			if t.releasesTable {
				if _, err := s.floorRepo.RefreshTableStatus(ctx, exec, u.RestaurantID, u.TableCode); err != nil && !errors.Is(err, repositories.ErrNotFound) {
					return err
				}
			}
			updated = u
			return nil
		})
		if errors.Is(err, repositories.ErrVersionConflict) {
			utils.LogDebug("booking version conflict, reloading", map[string]interface{}{"booking_id": bookingID, "attempt": attempt})
			continue
		}
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrBookingNotFound
			}
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}

		utils.LogInfo("booking status changed", map[string]interface{}{
			"booking_id": updated.ID, "from": previous, "to": updated.Status, "actor": actor.Type(),
		})
		if s.notifier != nil {
			if err := s.notifier.BookingStatusChanged(ctx, updated, previous); err != nil {
				utils.LogError(err, "booking status notification failed", map[string]interface{}{"booking_id": updated.ID})
			}
		}
		return updated, nil
	}
	return nil, ErrBookingVersionConflict
}

func requirePending(b *models.Booking) error {
	if b.Status != models.BookingStatusPending {
		return fmt.Errorf("%w: booking %s is %s", ErrBookingNotPending, b.Reference, b.Status)
	}
	return nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	return s.applyTransition(ctx, bookingID, actor, transition{
		to:        models.BookingStatusConfirmed,
		action:    models.HistoryActionConfirmed,
		staffOnly: true,
		guard:     requirePending,
	})
}

func (s *bookingService) RejectBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error) {
	return s.applyTransition(ctx, bookingID, actor, transition{
		to:            models.BookingStatusCancelled,
		action:        models.HistoryActionRejected,
		note:          reason,
		staffOnly:     true,
		releasesTable: true,
		guard:         requirePending,
	})
}

// CancelBooking cancels a pending or confirmed booking. Cancelling an already cancelled booking is a no-op.
// Confirmed bookings cannot be cancelled within two hours of their start except by an admin.
func (s *bookingService) CancelBooking(ctx context.Context, bookingID int64, actor models.Actor, reason string) (*models.Booking, error) {
	return s.applyTransition(ctx, bookingID, actor, transition{
		to:            models.BookingStatusCancelled,
		action:        models.HistoryActionCancelled,
		note:          reason,
		releasesTable: true,
		guard: func(b *models.Booking) error {
			if b.Status == models.BookingStatusCancelled {
				return errNoop
			}
			if b.Status == models.BookingStatusConfirmed && !actor.IsAdmin() {
				if s.slotStart(b).Sub(s.now()) < cancellationCutoff {
					return ErrCancellationWindowClosed
				}
			}
			return nil
		},
	})
}

func (s *bookingService) CompleteBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	return s.applyTransition(ctx, bookingID, actor, transition{
		to:            models.BookingStatusCompleted,
		action:        models.HistoryActionCompleted,
		staffOnly:     true,
		releasesTable: true,
	})
}

// UpdateBooking changes special requests when the caller's expected version is current.
func (s *bookingService) UpdateBooking(ctx context.Context, bookingID int64, actor models.Actor, req UpdateBookingRequest) (*models.Booking, error) {
	if req.ExpectedVersion == nil {
		return nil, fmt.Errorf("%w: expected_version is required", ErrBookingValidation)
	}
	if req.SpecialRequests == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrBookingValidation)
	}
	b, err := s.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, b, false); err != nil {
		return nil, err
	}
	if !b.Status.IsActive() {
		return nil, fmt.Errorf("%w: %s bookings cannot be edited", ErrInvalidStatusTransition, b.Status)
	}

	b.AppendHistory(models.HistoryEntry{
		ID:        uuid.NewString(),
		Action:    models.HistoryActionRequestsUpdated,
		ActorType: actor.Type(),
		ActorID:   actor.ID(),
		At:        s.now(),
	})
	patch := models.BookingPatch{SpecialRequests: req.SpecialRequests, History: b.History}

	var updated *models.Booking
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		u, err := s.bookingRepo.UpdateWithExpectedVersion(ctx, exec, bookingID, patch, *req.ExpectedVersion)
		updated = u
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrVersionConflict):
			return nil, ErrBookingVersionConflict
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return updated, nil
}
