//go:build !windows

package fsutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

var lockErrnos = []error{unix.EBUSY, unix.ETXTBSY, unix.EAGAIN}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
