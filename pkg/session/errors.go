package session

import (
	"errors"
	"fmt"

	"github.com/quocson95/ftpfleet/pkg/listing"
)

// Error kinds. Backend errors wrap one of these together with the cause, so
// callers can match with errors.Is and still print the server's reply.
var (
	ErrConnect  = errors.New("connect failed")
	ErrAuth     = errors.New("authentication failed")
	ErrPath     = errors.New("path error")
	ErrTransfer = errors.New("transfer failed")
	ErrListing  = listing.ErrListing
	ErrDelete   = errors.New("delete failed")
)

func wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
