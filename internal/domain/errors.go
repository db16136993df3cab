package domain

import "errors"

var (
	ErrFetch       = errors.New("fetch error")
	ErrParse       = errors.New("parse error")
	ErrBlocked     = errors.New("blocked by anti-bot challenge")
	ErrPersistence = errors.New("persistence error")
	ErrDelivery    = errors.New("notification delivery error")
	ErrNoEndpoint  = errors.New("no endpoint for channel")
)
