package models

import "time"

type Appointment struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Dept     string    `json:"dept"`
	Slot     string    `json:"slot"`
	BookedAt time.Time `json:"booked_at"`
}
