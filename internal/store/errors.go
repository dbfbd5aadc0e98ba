package store

import "errors"

var (
	ErrVisitNotFound = errors.New("visit not found")
	ErrInvalidState  = errors.New("invalid visit state")
	ErrTokenTaken    = errors.New("token already issued")
	ErrSlotTaken     = errors.New("slot already booked")
)
