//go:build !unix

package portlock

import (
	"fmt"
	"runtime"
)

func acquire(_ string) (Lock, error) {
	return nil, fmt.Errorf("%w on %s", ErrUnsupported, runtime.GOOS)
}
