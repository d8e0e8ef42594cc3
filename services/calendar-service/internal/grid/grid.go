// Package grid assembles the weekly booking view: resources against days,
// each day partitioned into availability slots with the bookings that
// occupy its cells.
package grid

import (
	"time"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/model"
)

type Week struct {
	WeekStart time.Time
	Days      []Day
}

type Day struct {
	Date     time.Time
	Slots    []availability.Slot
	Bookings []CellBooking
}

// CellBooking is the booking summary rendered inside a day cell.
type CellBooking struct {
	ID          string
	Title       string
	ResourceIDs []int64
	Start       time.Time
	End         time.Time
}

// DayInput carries the resolved schedule inputs for one day column.
type DayInput struct {
	Windows map[int64]availability.Span
	Blocked map[int64][]availability.Span
}

// WeekStart returns midnight of the first day of the week containing
// day, where firstDay is the portal's configured week start.
func WeekStart(day time.Time, firstDay time.Weekday) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	diff := (int(midnight.Weekday()) - int(firstDay) + 7) % 7
	return midnight.AddDate(0, 0, -diff)
}

// Build produces one Day column per entry of days, starting at weekStart.
// bookings must already be filtered to live bookings overlapping the
// week; each day picks out the ones overlapping it.
func Build(weekStart time.Time, resourceIDs []int64, days []DayInput, bookings []model.Booking, cfg availability.Config) Week {
	week := Week{WeekStart: weekStart}
	for i, input := range days {
		date := weekStart.AddDate(0, 0, i)
		dayEnd := date.AddDate(0, 0, 1)

		day := Day{Date: date}
		var busy []availability.Booking
		for _, b := range bookings {
			if !b.StartTime.Before(dayEnd) || !b.EndTime.After(date) {
				continue
			}
			busy = append(busy, availability.Booking{Resources: b.ResourceIDs, Start: b.StartTime, End: b.EndTime})
			day.Bookings = append(day.Bookings, CellBooking{
				ID:          b.ID,
				Title:       b.Title,
				ResourceIDs: b.ResourceIDs,
				Start:       b.StartTime,
				End:         b.EndTime,
			})
		}

		day.Slots = availability.ComputeSlots(date, resourceIDs, input.Windows, input.Blocked, busy, cfg)
		week.Days = append(week.Days, day)
	}
	return week
}
