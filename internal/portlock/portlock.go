// Package portlock keeps two processes from driving the same serial radio.
package portlock

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrPortBusy means another process holds the lock for the port.
var ErrPortBusy = errors.New("serial port in use by another process")

// ErrUnsupported means the platform has no lock backend.
var ErrUnsupported = errors.New("port lock unsupported")

type Lock interface {
	Release() error
}

// Acquire takes an exclusive, non-blocking lock for port inside dir. The lock
// is dropped by the OS if the process dies.
func Acquire(dir, port string) (Lock, error) {
	return acquire(Path(dir, port))
}

// Path is the lock file used for port.
func Path(dir, port string) string {
	return filepath.Join(dir, lockName(port)+".lock")
}

func lockName(port string) string {
	port = strings.TrimSpace(port)
	var b strings.Builder
	b.Grow(len(port))
	for _, r := range port {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), "_-.")
	if name == "" {
		return "port"
	}
	return "port-" + name
}
