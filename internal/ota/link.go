package ota

import (
	"errors"
	"time"
)

// ErrTimeout is returned by Link.Receive when no frame arrived in time.
var ErrTimeout = errors.New("ota receive timeout")

// Link is the half-duplex radio channel a transfer runs over.
type Link interface {
	SetOutputPower(dbm int8) error
	Transmit(frame []byte) error
	Receive(timeout time.Duration) ([]byte, error)
}
