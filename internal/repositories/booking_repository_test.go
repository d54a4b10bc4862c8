package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"restaurant_booking_backend/internal/models"
)

var bookingColumns = []string{
	"id", "reference", "restaurant_id", "floor_plan_id", "customer_id", "table_code", "booking_date",
	"start_time", "end_time", "start_minute", "end_minute", "guest_count", "status", "special_requests",
	"pricing", "history", "version", "source", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*bookingRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &bookingRepository{db: db}, mock, db
}

func TestClassifyWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"active slot unique", &pq.Error{Code: "23505", Constraint: ConstraintBookingActiveSlot}, ErrSlotConflict},
		{"overlap exclusion", &pq.Error{Code: "23P01", Constraint: ConstraintBookingNoOverlap}, ErrSlotConflict},
		{"reference unique", &pq.Error{Code: "23505", Constraint: ConstraintBookingReference}, ErrReferenceConflict},
		{"other unique", &pq.Error{Code: "23505", Constraint: "users_username_key"}, ErrDuplicateKey},
		{"foreign key", &pq.Error{Code: "23503"}, ErrDatabaseError},
		{"plain error", errors.New("connection reset"), ErrDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyWriteError(tt.err, "test"); !errors.Is(got, tt.want) {
				t.Errorf("classifyWriteError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateBookingSlotConflict(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23P01", Constraint: ConstraintBookingNoOverlap})

	_, err := repo.CreateBooking(context.Background(), db, &models.Booking{
		Reference:    "BK250614001",
		RestaurantID: 1,
		TableCode:    "T4",
		BookingDate:  "2025-06-14",
		StartTime:    "19:00",
		EndTime:      "21:00",
		StartMinute:  1140,
		EndMinute:    1260,
		GuestCount:   2,
		Status:       models.BookingStatusPending,
		Source:       models.BookingSourceChat,
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Errorf("error = %v, want ErrSlotConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateWithExpectedVersion(t *testing.T) {
	confirmed := models.BookingStatusConfirmed
	patch := models.BookingPatch{Status: &confirmed}
	created := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)

	t.Run("applies patch", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)
		rows := sqlmock.NewRows(bookingColumns).AddRow(
			int64(42), "BK250614001", int64(1), nil, nil, "T4", "2025-06-14",
			"19:00", "21:00", 1140, 1260, 2, "confirmed", nil,
			nil, []byte(`[]`), 4, "line", created, created,
		)
		mock.ExpectQuery(`UPDATE bookings SET status = \$1, version = version \+ 1, updated_at = \$2 WHERE id = \$3 AND version = \$4`).
			WithArgs("confirmed", sqlmock.AnyArg(), int64(42), 3).
			WillReturnRows(rows)

		b, err := repo.UpdateWithExpectedVersion(context.Background(), db, 42, patch, 3)
		if err != nil {
			t.Fatal(err)
		}
		if b.Status != models.BookingStatusConfirmed || b.Version != 4 || b.History == nil {
			t.Errorf("booking = %+v", b)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)
		mock.ExpectQuery("UPDATE bookings SET").WillReturnRows(sqlmock.NewRows(bookingColumns))
		mock.ExpectQuery("SELECT version FROM bookings WHERE id =").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(5))

		_, err := repo.UpdateWithExpectedVersion(context.Background(), db, 42, patch, 3)
		if !errors.Is(err, ErrVersionConflict) {
			t.Errorf("error = %v, want ErrVersionConflict", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("missing booking", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)
		mock.ExpectQuery("UPDATE bookings SET").WillReturnRows(sqlmock.NewRows(bookingColumns))
		mock.ExpectQuery("SELECT version FROM bookings WHERE id =").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))

		_, err := repo.UpdateWithExpectedVersion(context.Background(), db, 42, patch, 3)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestMaxReferenceSequenceLocksPrefixFirst(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("BK250614").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE\\(MAX").
		WithArgs("BK250614%", 9).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
	mock.ExpectCommit()

	var seq int
	err := NewTransactor(db).WithinTx(context.Background(), func(exec SQLExecutor) error {
		var err error
		seq, err = repo.MaxReferenceSequence(context.Background(), exec, "BK250614")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if seq != 7 {
		t.Errorf("seq = %d, want 7", seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMaxReferenceSequenceLockFailure(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnError(errors.New("canceling statement due to lock timeout"))

	if _, err := repo.MaxReferenceSequence(context.Background(), db, "BK250614"); !errors.Is(err, ErrDatabaseError) {
		t.Errorf("error = %v, want ErrDatabaseError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetBookingByIDNotFound(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	mock.ExpectQuery("FROM bookings WHERE id =").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(bookingColumns))

	if _, err := repo.GetBookingByID(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
