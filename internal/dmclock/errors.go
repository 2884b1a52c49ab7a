package dmclock

import (
	"fmt"

	"github.com/pkg/errors"
)

// Construction-time programming errors (spec §7).
var (
	ErrEraseAgeBeforeIdleAge = errors.New("dmclock: erase_age must be >= idle_age")
	ErrCheckTimeTooLarge     = errors.New("dmclock: check_time must be < idle_age")
	ErrNilClientInfoResolver = errors.New("dmclock: client info resolver is required")
)

// errWrapRecover turns a recover() value from a user-supplied OnEvict
// hook into an error, so a single misbehaving callback cannot take down
// the cleaner's sweep of every other client.
func errWrapRecover(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "dmclock: OnEvict callback panicked")
	}
	return errors.Errorf("dmclock: OnEvict callback panicked: %v", fmt.Sprint(r))
}
