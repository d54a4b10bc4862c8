package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRefreshTableStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"another booking still holds the table", "booked"},
		{"no active booking left", "available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()
			repo := &floorPlanRepository{db: db}

			mock.ExpectQuery(`SELECT t.id FROM floor_plan_tables t .* FOR UPDATE OF t`).
				WithArgs(int64(1), "T1").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
			mock.ExpectQuery(`UPDATE floor_plan_tables SET\s+status = CASE WHEN EXISTS`).
				WithArgs(int64(1), "T1", sqlmock.AnyArg(), int64(11)).
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.status))

			got, err := repo.RefreshTableStatus(context.Background(), db, 1, "T1")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.status {
				t.Errorf("status = %s, want %s", got, tt.status)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRefreshTableStatusUnknownTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = (&floorPlanRepository{db: db}).RefreshTableStatus(context.Background(), db, 1, "T404")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
