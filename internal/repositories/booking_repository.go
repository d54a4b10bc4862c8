package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_booking_backend/internal/models"
)

// BookingRepository defines the interface for booking-related database operations.
type BookingRepository interface {
	CreateBooking(ctx context.Context, executor SQLExecutor, booking *models.Booking) (*models.Booking, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, int, error)
	// ListActiveBookings returns pending/confirmed bookings of a restaurant on a date, optionally for one table.
	ListActiveBookings(ctx context.Context, restaurantID int64, date string, tableCode string) ([]models.Booking, error)
	// MaxReferenceSequence returns the highest daily sequence already used for prefix, 0 if none.
	// It takes a transaction-scoped advisory lock on prefix first, so executor must be a transaction.
	MaxReferenceSequence(ctx context.Context, executor SQLExecutor, prefix string) (int, error)
	UpdateWithExpectedVersion(ctx context.Context, executor SQLExecutor, id int64, patch models.BookingPatch, expectedVersion int) (*models.Booking, error)
	// ListBookingStats returns non-cancelled bookings of a restaurant with booking_date in [from, to].
	ListBookingStats(ctx context.Context, restaurantID int64, from, to string) ([]models.BookingStat, error)
}

type bookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new instance of BookingRepository.
func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

const selectBookingFields = `
	id, reference, restaurant_id, floor_plan_id, customer_id, table_code, booking_date::text,
	start_time, end_time, start_minute, end_minute, guest_count, status, special_requests,
	pricing, history, version, source, created_at, updated_at`

func bookingScanDest(b *models.Booking) []interface{} {
	return []interface{}{
		&b.ID, &b.Reference, &b.RestaurantID, &b.FloorPlanID, &b.CustomerID, &b.TableCode, &b.BookingDate,
		&b.StartTime, &b.EndTime, &b.StartMinute, &b.EndMinute, &b.GuestCount, &b.Status, &b.SpecialRequests,
		&b.Pricing, &b.History, &b.Version, &b.Source, &b.CreatedAt, &b.UpdatedAt,
	}
}

// scanBookingRow is a helper to scan a single booking row.
// isList additionally scans the COUNT(*) OVER() column of list queries.
func scanBookingRow(row scanner, isList bool) (*models.Booking, int, error) {
	var booking models.Booking
	var totalCount int

	dest := bookingScanDest(&booking)
	if isList {
		dest = append(dest, &totalCount)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: scanning booking: %v", ErrDatabaseError, err)
	}
	if booking.History == nil {
		booking.History = models.BookingHistory{}
	}
	return &booking, totalCount, nil
}

func (r *bookingRepository) CreateBooking(ctx context.Context, executor SQLExecutor, booking *models.Booking) (*models.Booking, error) {
	query := `INSERT INTO bookings
	            (reference, restaurant_id, floor_plan_id, customer_id, table_code, booking_date, start_time, end_time,
	             start_minute, end_minute, guest_count, status, special_requests, pricing, history, version, source,
	             created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0, $16, $17, $18)
	          RETURNING id, version, created_at, updated_at`

	currentTime := time.Now()
	booking.CreatedAt = currentTime
	booking.UpdatedAt = currentTime

	err := executor.QueryRowContext(ctx, query,
		booking.Reference, booking.RestaurantID, booking.FloorPlanID, booking.CustomerID, booking.TableCode,
		booking.BookingDate, booking.StartTime, booking.EndTime, booking.StartMinute, booking.EndMinute,
		booking.GuestCount, booking.Status, booking.SpecialRequests, booking.Pricing, booking.History,
		booking.Source, booking.CreatedAt, booking.UpdatedAt,
	).Scan(&booking.ID, &booking.Version, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return nil, classifyWriteError(err, "creating booking")
	}
	return booking, nil
}

func (r *bookingRepository) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	query := "SELECT " + selectBookingFields + " FROM bookings WHERE id = $1"
	booking, _, err := scanBookingRow(r.db.QueryRowContext(ctx, query, id), false)
	return booking, err
}

func (r *bookingRepository) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := "SELECT " + selectBookingFields + " FROM bookings WHERE reference = $1"
	booking, _, err := scanBookingRow(r.db.QueryRowContext(ctx, query, reference), false)
	return booking, err
}

func (r *bookingRepository) GetBookings(ctx context.Context, filters models.BookingFilters) ([]models.Booking, int, error) {
	bookings := []models.Booking{}
	var totalCount int

	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT " + selectBookingFields + ", COUNT(*) OVER() AS total_count FROM bookings")

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.RestaurantID != nil {
		conditions = append(conditions, fmt.Sprintf("restaurant_id = $%d", argCount))
		args = append(args, *filters.RestaurantID)
		argCount++
	}
	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argCount))
		args = append(args, *filters.CustomerID)
		argCount++
	}
	if filters.TableCode != nil && *filters.TableCode != "" {
		conditions = append(conditions, fmt.Sprintf("table_code = $%d", argCount))
		args = append(args, *filters.TableCode)
		argCount++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.ActiveOnly {
		conditions = append(conditions, "status IN ('pending', 'confirmed')")
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date >= $%d", argCount))
		args = append(args, *filters.DateFrom)
		argCount++
	}
	if filters.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date <= $%d", argCount))
		args = append(args, *filters.DateTo)
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY booking_date ASC, start_minute ASC, id ASC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCount))
		args = append(args, filters.PageSize)
		argCount++
		if filters.Page > 0 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCount))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying bookings: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		booking, scannedTotal, scanErr := scanBookingRow(rows, true)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		bookings = append(bookings, *booking)
		totalCount = scannedTotal
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating booking rows: %v", ErrDatabaseError, err)
	}
	return bookings, totalCount, nil
}

func (r *bookingRepository) ListActiveBookings(ctx context.Context, restaurantID int64, date string, tableCode string) ([]models.Booking, error) {
	query := "SELECT " + selectBookingFields + ` FROM bookings
	          WHERE restaurant_id = $1 AND booking_date = $2 AND status IN ('pending', 'confirmed')`
	args := []interface{}{restaurantID, date}
	if tableCode != "" {
		query += " AND table_code = $3"
		args = append(args, tableCode)
	}
	query += " ORDER BY start_minute ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying active bookings: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		booking, _, scanErr := scanBookingRow(rows, false)
		if scanErr != nil {
			return nil, scanErr
		}
		bookings = append(bookings, *booking)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating active bookings: %v", ErrDatabaseError, err)
	}
	return bookings, nil
}

func (r *bookingRepository) MaxReferenceSequence(ctx context.Context, executor SQLExecutor, prefix string) (int, error) {
	// Held until commit or rollback; concurrent creators of one day read MAX in turn.
	if _, err := executor.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", prefix); err != nil {
		return 0, fmt.Errorf("%w: locking reference prefix %s: %v", ErrDatabaseError, prefix, err)
	}
	query := `SELECT COALESCE(MAX(CAST(SUBSTRING(reference FROM $2) AS INTEGER)), 0)
	          FROM bookings WHERE reference LIKE $1`
	var seq int
	err := executor.QueryRowContext(ctx, query, prefix+"%", len(prefix)+1).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("%w: reading max reference sequence for %s: %v", ErrDatabaseError, prefix, err)
	}
	return seq, nil
}

// UpdateWithExpectedVersion applies patch only when the stored version equals expectedVersion,
// incrementing the version. A mismatch returns ErrVersionConflict, a missing row ErrNotFound.
func (r *bookingRepository) UpdateWithExpectedVersion(ctx context.Context, executor SQLExecutor, id int64, patch models.BookingPatch, expectedVersion int) (*models.Booking, error) {
	var sets []string
	var args []interface{}
	argCount := 1

	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *patch.Status)
		argCount++
	}
	if patch.SpecialRequests != nil {
		sets = append(sets, fmt.Sprintf("special_requests = $%d", argCount))
		args = append(args, *patch.SpecialRequests)
		argCount++
	}
	if patch.Pricing != nil {
		sets = append(sets, fmt.Sprintf("pricing = $%d", argCount))
		args = append(args, *patch.Pricing)
		argCount++
	}
	if patch.History != nil {
		sets = append(sets, fmt.Sprintf("history = $%d", argCount))
		args = append(args, patch.History)
		argCount++
	}
	sets = append(sets, "version = version + 1", fmt.Sprintf("updated_at = $%d", argCount))
	args = append(args, time.Now())
	argCount++

	query := fmt.Sprintf("UPDATE bookings SET %s WHERE id = $%d AND version = $%d RETURNING %s",
		strings.Join(sets, ", "), argCount, argCount+1, selectBookingFields)
	args = append(args, id, expectedVersion)

	var booking models.Booking
	err := executor.QueryRowContext(ctx, query, args...).Scan(bookingScanDest(&booking)...)
	if err == nil {
		if booking.History == nil {
			booking.History = models.BookingHistory{}
		}
		return &booking, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classifyWriteError(err, fmt.Sprintf("updating booking ID %d", id))
	}

	var current int
	err = executor.QueryRowContext(ctx, "SELECT version FROM bookings WHERE id = $1", id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading version of booking ID %d: %v", ErrDatabaseError, id, err)
	}
	return nil, fmt.Errorf("%w: booking ID %d expected version %d, current %d", ErrVersionConflict, id, expectedVersion, current)
}

func (r *bookingRepository) ListBookingStats(ctx context.Context, restaurantID int64, from, to string) ([]models.BookingStat, error) {
	query := `SELECT booking_date::text, start_minute, end_minute, guest_count, status, created_at
	          FROM bookings
	          WHERE restaurant_id = $1 AND booking_date >= $2 AND booking_date <= $3 AND status <> 'cancelled'
	          ORDER BY booking_date ASC, start_minute ASC`

	rows, err := r.db.QueryContext(ctx, query, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: querying booking stats: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	stats := []models.BookingStat{}
	for rows.Next() {
		var s models.BookingStat
		if err := rows.Scan(&s.BookingDate, &s.StartMinute, &s.EndMinute, &s.GuestCount, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning booking stat: %v", ErrDatabaseError, err)
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating booking stats: %v", ErrDatabaseError, err)
	}
	return stats, nil
}
