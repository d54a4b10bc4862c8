package chatbot

import (
	"time"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/pkg/utils"
)

const (
	SlotInterval          = 30 // minutes
	closingBufferMinutes  = 60
	minimumLeadMinutes    = 60
	lastSlotOfTheDay      = utils.MinutesPerDay - SlotInterval
	defaultOpenMinute     = 11 * 60
	defaultCloseMinute    = 22 * 60
	allDayCloseMinuteMark = utils.MinutesPerDay - 1
)

// GenerateSlots lists bookable start minutes for day under hours.
//
// Slots start at opening time every SlotInterval and stop one hour before closing unless the
// venue is open all day. On the current day slots less than an hour away are dropped. When that
// leaves nothing, the whole day is offered under the same lead-time rule.
// Closed days yield no slots.
func GenerateSlots(hours models.DayHours, day, now time.Time) []int {
	if hours.Closed {
		return nil
	}
	openAt, err := utils.ParseClock(hours.Open)
	if err != nil {
		openAt = defaultOpenMinute
	}
	closeAt, err := utils.ParseClock(hours.Close)
	if err != nil {
		closeAt = defaultCloseMinute
	}

	earliest := -1
	if sameDay(day, now) {
		earliest = now.Hour()*60 + now.Minute() + minimumLeadMinutes
	}

	var last int
	switch {
	case isAllDay(openAt, closeAt):
		openAt, last = 0, lastSlotOfTheDay
	case closeAt < openAt:
		// Closes after midnight: only the part of the evening on this date is bookable.
		last = closeAt + utils.MinutesPerDay - closingBufferMinutes
	default:
		last = closeAt - closingBufferMinutes
	}
	if last > lastSlotOfTheDay {
		last = lastSlotOfTheDay
	}

	slots := stepSlots(openAt, last, earliest)
	if len(slots) == 0 {
		slots = stepSlots(0, lastSlotOfTheDay, earliest)
	}
	return slots
}

func stepSlots(from, to, earliest int) []int {
	slots := []int{}
	for m := from; m <= to; m += SlotInterval {
		if m < earliest {
			continue
		}
		slots = append(slots, m)
	}
	return slots
}

func isAllDay(openAt, closeAt int) bool {
	return openAt == closeAt || (openAt == 0 && closeAt >= allDayCloseMinuteMark)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
