package kvat

import "github.com/pkg/errors"

// KVATError is the ordered result kind every fallible operation reports.
// Prefer errors.Is over comparing the numeric value directly.
type KVATError int

const (
	ErrNone KVATError = iota
	ErrUnknown
	ErrInvalidAccess
	ErrNotFound
	ErrFetchFault
	ErrInsufficientSpace
	ErrStorageFault
	ErrHeapError
	ErrRecordFault
	ErrTableError
	ErrKeyDuplicate
)

var kvatErrorText = [...]string{
	"kvat: no error",
	"kvat: unknown error",
	"kvat: invalid access",
	"kvat: not found",
	"kvat: fetch fault",
	"kvat: insufficient space",
	"kvat: storage fault",
	"kvat: heap error",
	"kvat: record fault",
	"kvat: table error",
	"kvat: key duplicate",
}

func (e KVATError) Error() string {
	if int(e) < 0 || int(e) >= len(kvatErrorText) {
		return "kvat: error(unknown)"
	}
	return kvatErrorText[e]
}

// wrap attaches a lower-level cause to one of the sentinel KVATError
// values so callers can still dispatch on the sentinel with errors.Is
// while the formatted message carries the collaborator's own complaint.
func wrap(kind KVATError, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}
