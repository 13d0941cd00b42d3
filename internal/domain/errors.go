package domain

import "errors"

// Error vocabulary the engine surfaces to its adapters. REST maps these to
// HTTP statuses; the fabric adapter logs and drops.
var (
	ErrUnknownCharger   = errors.New("unknown charger")
	ErrUnknownConnector = errors.New("unknown connector")
	ErrConnectorBusy    = errors.New("connector busy")
	ErrSessionNotFound  = errors.New("session not found")
	ErrStaleUpdate      = errors.New("stale update")
	ErrProtocolError    = errors.New("protocol error")
	ErrPersistence      = errors.New("persistence error")
)
