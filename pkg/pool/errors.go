package pool

import (
	"fmt"
	"strconv"

	"github.com/coachpo/syncpool/errs"
)

const component = "pool"

var (
	// ErrClosed is returned by Get and Put on a closed pool.
	ErrClosed = errs.New(component, errs.CodeClosed,
		errs.WithMessage("pool has been closed"),
		errs.WithRemediation("re-open the pool or create a new one"))
	// ErrCapacityReached is returned by Put when the stack already holds
	// capacity objects.
	ErrCapacityReached = errs.New(component, errs.CodeCapacityReached,
		errs.WithMessage("pool is fully occupied, failed to accept passed object"),
		errs.WithRemediation("drop the object, retry later, or enlarge the pool"))
	// ErrIllegalAccess matches every *IllegalAccessError.
	ErrIllegalAccess = errs.New(component, errs.CodeIllegalAccess,
		errs.WithMessage("pool accessed outside its owning domain"))
)

// IllegalAccessError reports an operation invoked from an execution domain
// other than the one that created the pool.
type IllegalAccessError struct {
	Owner    Domain
	Accessor Domain
}

func (e *IllegalAccessError) Error() string {
	return fmt.Sprintf("pool: %s tried to access the pool; the pool is only to be shared within its owner %s",
		e.Accessor, e.Owner)
}

// Unwrap exposes ErrIllegalAccess so callers can match with errors.Is.
func (e *IllegalAccessError) Unwrap() error { return ErrIllegalAccess }

func capacityReached(capacity int) error {
	return errs.New(component, errs.CodeCapacityReached,
		errs.WithMessage(ErrCapacityReached.Message),
		errs.WithRemediation(ErrCapacityReached.Remediation),
		errs.WithField("capacity", strconv.Itoa(capacity)))
}

func invalidConfig(msg string) error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage(msg))
}
