package models

import "time"

type Visit struct {
	ID           int64      `json:"id"`
	Token        string     `json:"token"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Dept         string     `json:"dept"`
	Score        int        `json:"score"`
	Arrival      time.Time  `json:"arrival"`
	Status       string     `json:"status"`
	ServiceStart *time.Time `json:"service_start,omitempty"`
	ServiceEnd   *time.Time `json:"service_end,omitempty"`
}

// Arrival is the slice of a visit the analytics helpers work from.
type Arrival struct {
	Dept string
	At   time.Time
}

const (
	StatusWaiting = "waiting"
	StatusCalled  = "called"
)
