package rtps

import "errors"

// Error kinds surfaced to user code (spec §7). Internal failures wrap
// these with fmt.Errorf("...: %w", ErrX) so callers can still match
// with errors.Is against the sentinel.
var (
	ErrGeneric             = errors.New("rtps: error")
	ErrUnsupported         = errors.New("rtps: unsupported")
	ErrBadParameter        = errors.New("rtps: bad parameter")
	ErrPreconditionNotMet  = errors.New("rtps: precondition not met")
	ErrOutOfResources      = errors.New("rtps: out of resources")
	ErrNotEnabled          = errors.New("rtps: entity not enabled")
	ErrImmutablePolicy     = errors.New("rtps: immutable qos policy")
	ErrInconsistentPolicy  = errors.New("rtps: inconsistent qos policy")
	ErrAlreadyDeleted      = errors.New("rtps: entity already deleted")
	ErrTimeout             = errors.New("rtps: timeout")
	ErrNoData              = errors.New("rtps: no data")
	ErrIllegalOperation    = errors.New("rtps: illegal operation")
	ErrMalformedSubmessage = errors.New("rtps: malformed submessage")
)
