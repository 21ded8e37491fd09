package rtps

import "time"

// Duration is the RTPS wire representation of a time interval:
// whole seconds plus a fractional nanosecond remainder.
//
// DurationInfinite is modelled as a single sentinel value rather than
// letting the two fields vary independently, resolving the ambiguity
// the source left open between the 0xffffffff nanosecond marker and
// the 0x7fffffff second marker (see SPEC_FULL.md, open question 1):
// a Duration compares as infinite as soon as Sec == 0x7fffffff,
// regardless of Nanosec.
type Duration struct {
	Sec     int32
	Nanosec uint32
}

// DurationInfinite is the canonical "never" duration.
var DurationInfinite = Duration{Sec: 0x7fffffff, Nanosec: 0xffffffff}

// DurationZero is the zero duration.
var DurationZero = Duration{}

// Infinite reports whether d represents an unbounded duration.
func (d Duration) Infinite() bool {
	return d.Sec == 0x7fffffff
}

// AsTimeDuration converts to a time.Duration, clamping an infinite
// Duration to the largest representable time.Duration.
func (d Duration) AsTimeDuration() time.Duration {
	if d.Infinite() {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nanosec)
}

// DurationFromTimeDuration converts a time.Duration to the wire Duration.
func DurationFromTimeDuration(d time.Duration) Duration {
	return Duration{
		Sec:     int32(d / time.Second),
		Nanosec: uint32(d % time.Second),
	}
}

// LessEqual reports whether d <= other, honoring the infinite sentinel.
func (d Duration) LessEqual(other Duration) bool {
	if other.Infinite() {
		return true
	}
	if d.Infinite() {
		return false
	}
	if d.Sec != other.Sec {
		return d.Sec < other.Sec
	}
	return d.Nanosec <= other.Nanosec
}
