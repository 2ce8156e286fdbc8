package mseed

import "sync"

// scratch records for the Peek helpers. sync.Pool keeps them per P, so
// concurrent peeks do not contend on a shared buffer.
var peekRecords = sync.Pool{
	New: func() any { return NewRecord() },
}

func withPeekRecord[T any](buf []byte, fn func(r *Record) T) (T, error) {
	r := peekRecords.Get().(*Record)
	defer peekRecords.Put(r)
	if err := r.Load(buf); err != nil {
		var zero T
		return zero, err
	}
	return fn(r), nil
}

// PeekSeedName returns the NSCL of a raw record without cracking it.
func PeekSeedName(buf []byte) (NSCL, error) {
	if len(buf) < FixedHeaderSize {
		return NSCL{}, ErrShortRecord
	}
	return readName(buf), nil
}

// PeekTimeMicros returns the start time of a raw record in epoch
// microseconds, including any blockette 1001 correction.
func PeekTimeMicros(buf []byte) (int64, error) {
	return withPeekRecord(buf, (*Record).TimeMicros)
}

// PeekTimeMillis returns the rounded start time of a raw record in epoch
// milliseconds.
func PeekTimeMillis(buf []byte) (int64, error) {
	return withPeekRecord(buf, (*Record).TimeMillis)
}

// PeekRecordLength returns the record length declared by blockette 1000, or
// 0 when buf carries none within its first bytes.
func PeekRecordLength(buf []byte) int {
	if len(buf) < FixedHeaderSize || isHeartbeat(buf) {
		return 0
	}
	d, err := DetectByteOrder(buf, false)
	if err != nil || d.DataExtension == 0 {
		return 0
	}
	pow := int(buf[d.DataExtension+6])
	if pow < minRecordPow || pow > maxRecordPow {
		return 0
	}
	return 1 << pow
}
