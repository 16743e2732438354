package redis

import (
	"errors"
	"fmt"
)

// ErrInvalidPort is returned by LoadConfig when the configured port is not
// a valid TCP port.
var ErrInvalidPort = errors.New("invalid redis port")

// ConnectionError is returned when an explicit Connect or Disconnect fails.
type ConnectionError struct {
	// Op is "connect" or "disconnect".
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("redis %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
