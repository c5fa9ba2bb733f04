package model

import "errors"

// ErrorKind is a closed set of error categories a KernelError is tagged
// with. Callers test for a category with errors.Is against the sentinel
// errors below rather than parsing strings.
type ErrorKind int

const (
	// ErrorKindValidation covers malformed identifiers, bad instrument
	// definitions, and other caller-supplied data that never should have
	// been constructed in the first place.
	ErrorKindValidation ErrorKind = iota
	// ErrorKindRiskDenied covers a pre-trade risk check rejecting a command.
	ErrorKindRiskDenied
	// ErrorKindInvalidState covers an order/position FSM transition that
	// does not exist from the current state.
	ErrorKindInvalidState
	// ErrorKindNotFound covers lookups against the cache that come up empty.
	ErrorKindNotFound
	// ErrorKindVenueRejected covers a venue report explicitly rejecting or
	// denying a request.
	ErrorKindVenueRejected
	// ErrorKindTimestampRegression covers data arriving with ts_init at or
	// before the last observed value for its stream.
	ErrorKindTimestampRegression
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindValidation:
		return "validation"
	case ErrorKindRiskDenied:
		return "risk_denied"
	case ErrorKindInvalidState:
		return "invalid_state"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindVenueRejected:
		return "venue_rejected"
	case ErrorKindTimestampRegression:
		return "timestamp_regression"
	default:
		return "unknown"
	}
}

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ErrX) for context; test
// against the category with errors.Is.
var (
	ErrEmptyIdentifier    = errors.New("identifier must not be empty")
	ErrNonASCIIIdentifier = errors.New("identifier must be ASCII")

	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrAccountNotFound    = errors.New("account not found")

	ErrInvalidOrderTransition    = errors.New("invalid order state transition")
	ErrInvalidPositionTransition = errors.New("invalid position state transition")

	ErrRiskDenied             = errors.New("risk check denied command")
	ErrVenueRejected          = errors.New("venue rejected request")
	ErrTimestampRegression    = errors.New("ts_init regression")
	ErrDuplicateClientOrderId = errors.New("duplicate client order id")
	ErrContingencyViolation   = errors.New("contingency order violation")
	ErrReduceOnlyViolation    = errors.New("reduce-only order would increase position")
	ErrInsufficientBalance    = errors.New("insufficient account balance")
	ErrBookCrossed            = errors.New("order book is crossed")
	ErrUnsupportedCodec       = errors.New("unsupported catalog codec")
	ErrNoExecutionClient      = errors.New("no execution client registered for venue")
)

// KernelError is a kind-tagged wrapper around a sentinel error. Unwrap()
// exposes the sentinel so errors.Is still works through it. The kernel's
// own components wrap sentinels with fmt.Errorf and do not construct it.
type KernelError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *KernelError) Error() string {
	if e.Op == "" {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *KernelError) Unwrap() error { return e.Err }

// NewKernelError builds a KernelError, tagging the failing operation and
// category alongside the wrapped sentinel.
func NewKernelError(kind ErrorKind, op string, err error) *KernelError {
	return &KernelError{Kind: kind, Op: op, Err: err}
}
