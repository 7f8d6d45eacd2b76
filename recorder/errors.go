package recorder

import (
	"errors"
	"syscall"
)

// isDiskFull reports whether err ultimately wraps ENOSPC, the OS's way of
// reporting an out-of-space condition on a regular file write.
func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
