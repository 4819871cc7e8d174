package availability

import (
	"errors"
	"fmt"
)

var (
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrInvalidWeekday   = errors.New("invalid weekday")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Unavailable marks an infrastructure failure as transient so callers can
// match it with errors.Is(err, ErrStoreUnavailable) and retry.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
