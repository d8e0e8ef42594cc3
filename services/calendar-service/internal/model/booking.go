package model

import "time"

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

type Booking struct {
	ID           string
	PortalID     string
	ResourceIDs  []int64
	Title        string
	ContactID    int64
	ContactName  string
	ContactEmail string
	ContactPhone string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}
