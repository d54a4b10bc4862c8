package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAppendHistoryDedup(t *testing.T) {
	at := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	confirm := HistoryEntry{Action: HistoryActionConfirmed, FromStatus: BookingStatusPending, ToStatus: BookingStatusConfirmed, At: at}

	b := &Booking{}
	if !b.AppendHistory(confirm) {
		t.Fatal("first entry was dropped")
	}

	dup := confirm
	dup.At = at.Add(2 * time.Second)
	if b.AppendHistory(dup) {
		t.Error("duplicate within the window was appended")
	}

	later := confirm
	later.At = at.Add(HistoryDedupWindow)
	if !b.AppendHistory(later) {
		t.Error("entry outside the window was dropped")
	}

	other := HistoryEntry{Action: HistoryActionRequestsUpdated, At: at.Add(time.Second)}
	if !b.AppendHistory(other) {
		t.Error("different action was dropped")
	}
	if len(b.History) != 3 {
		t.Errorf("history length = %d, want 3", len(b.History))
	}
}

func TestBookingHistoryRoundTripsJSONB(t *testing.T) {
	var nilHistory BookingHistory
	v, err := nilHistory.Value()
	if err != nil {
		t.Fatal(err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("nil history stored as %s, want []", v)
	}

	var h BookingHistory
	if err := h.Scan([]byte(`[{"id":"h1","action":"created","to_status":"pending","at":"2025-06-14T10:00:00Z"}]`)); err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 || h[0].Action != HistoryActionCreated || h[0].ToStatus != BookingStatusPending {
		t.Errorf("scanned history = %+v", h)
	}
}
