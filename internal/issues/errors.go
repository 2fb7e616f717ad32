package issues

import "errors"

// Error reasons. These strings are part of the API contract: clients match on
// them, so they must not change.
var (
	ErrRequiredFields = errors.New("required field(s) missing")
	ErrMissingID      = errors.New("missing _id")
	ErrNoUpdateFields = errors.New("no update field(s) sent")
	ErrUpdateFailed   = errors.New("could not update")
	ErrDeleteFailed   = errors.New("could not delete")
	ErrCreateFailed   = errors.New("could not create issue")
	ErrReadFailed     = errors.New("could not retrieve issues")
)

// failure reports a reason to the caller while keeping the underlying cause
// reachable through errors.Is/As.
type failure struct {
	reason error
	cause  error
}

func (f *failure) Error() string { return f.reason.Error() }

func (f *failure) Unwrap() []error { return []error{f.reason, f.cause} }

// Reason returns the client-facing reason for err.
func Reason(err error) string {
	var f *failure
	if errors.As(err, &f) {
		return f.reason.Error()
	}
	return err.Error()
}
