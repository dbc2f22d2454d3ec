// Package timeunit defines the single monotonic time base shared by every
// other package in micrograder: Sequence keys, Condition satisfaction
// times, EvalPoint intervals, and the codec's on-wire timestamp all share
// this unit.
package timeunit

// Millisecond is the canonical internal time resolution. The device may
// send timestamps or periods at a different resolution (see codec);
// everything past ingest operates in this unit.
const Millisecond int64 = 1

const microsPerMilli = 1000

// MicrosToMillis converts a device-side microsecond duration (e.g. a
// BatchParams period) to the internal millisecond time base, truncating
// any sub-millisecond remainder the same way the device's own timer
// would.
func MicrosToMillis(micros int64) int64 {
	return micros / microsPerMilli
}
