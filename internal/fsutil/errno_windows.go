//go:build windows

package fsutil

import (
	"errors"

	"golang.org/x/sys/windows"
)

var lockErrnos = []error{windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION}

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
