package db

import (
	"database/sql/driver"
	"errors"
	"io"
	"syscall"
)

// Errors worth another attempt when opening or pinging a warehouse.
var transientErrs = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ETIMEDOUT,
	driver.ErrBadConn,
	io.EOF,
	io.ErrUnexpectedEOF,
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	for _, transientErr := range transientErrs {
		if errors.Is(err, transientErr) {
			return true
		}
	}

	return false
}
