package mseed

import (
	"encoding/binary"
	"fmt"
)

const (
	microsPerSecond = 1_000_000
	secondsPerDay   = 86400

	// leap days in years 1..1969
	leapDaysBefore1970 = 477
)

// BTime is the SEED binary time: year, day of year and time of day with a
// resolution of a tenth of a millisecond.
type BTime struct {
	Year   uint16
	Day    uint16
	Hour   uint8
	Minute uint8
	Second uint8
	Tenths uint16 // units of 0.0001 s
}

func (t BTime) String() string {
	return fmt.Sprintf("%04d,%03d %02d:%02d:%02d.%04d", t.Year, t.Day, t.Hour, t.Minute, t.Second, t.Tenths)
}

// Plausible reports whether every field falls in its legal range and the
// year lies in [minYear, maxYear]. A leap second (60) is accepted.
func (t BTime) Plausible(minYear, maxYear int) error {
	switch {
	case int(t.Year) < minYear || int(t.Year) > maxYear:
		return fmt.Errorf("year %d outside [%d,%d]", t.Year, minYear, maxYear)
	case t.Day < 1 || t.Day > 366 || (t.Day == 366 && !isLeap(int(t.Year))):
		return fmt.Errorf("day of year %d invalid for %d", t.Day, t.Year)
	case t.Hour > 23:
		return fmt.Errorf("hour %d out of range", t.Hour)
	case t.Minute > 59:
		return fmt.Errorf("minute %d out of range", t.Minute)
	case t.Second > 60:
		return fmt.Errorf("second %d out of range", t.Second)
	case t.Tenths > 9999:
		return fmt.Errorf("tenths of millisecond %d out of range", t.Tenths)
	}
	return nil
}

// EpochMicros converts t plus a microsecond correction to microseconds since
// 1970-01-01T00:00:00Z.
func EpochMicros(t BTime, extra int) int64 {
	days := daysBeforeYear(int(t.Year)) + int64(t.Day) - 1
	secs := days*secondsPerDay + int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)
	return secs*microsPerSecond + int64(t.Tenths)*100 + int64(extra)
}

// EpochMillis converts to epoch milliseconds, rounding the sub-millisecond
// remainder half up.
func EpochMillis(t BTime, extra int) int64 {
	return floorDiv(EpochMicros(t, extra)+500, 1000)
}

// EpochMillisTruncated converts to epoch milliseconds, flooring the
// sub-millisecond remainder.
func EpochMillisTruncated(t BTime, extra int) int64 {
	return floorDiv(EpochMicros(t, extra), 1000)
}

// BTimeFromMicros splits epoch microseconds into a BTime and the 0..99
// microsecond remainder that does not fit in the tenths field.
func BTimeFromMicros(us int64) (BTime, int) {
	secs := floorDiv(us, microsPerSecond)
	rem := us - secs*microsPerSecond
	days := floorDiv(secs, secondsPerDay)
	sod := secs - days*secondsPerDay
	year, doy := yearDay(days)
	return BTime{
		Year:   uint16(year),
		Day:    uint16(doy),
		Hour:   uint8(sod / 3600),
		Minute: uint8(sod % 3600 / 60),
		Second: uint8(sod % 60),
		Tenths: uint16(rem / 100),
	}, int(rem % 100)
}

// BTimeFromMillis converts epoch milliseconds to a BTime.
func BTimeFromMillis(ms int64) BTime {
	t, _ := BTimeFromMicros(ms * 1000)
	return t
}

func decodeBTime(b []byte, order binary.ByteOrder) BTime {
	return BTime{
		Year:   order.Uint16(b[0:]),
		Day:    order.Uint16(b[2:]),
		Hour:   b[4],
		Minute: b[5],
		Second: b[6],
		Tenths: order.Uint16(b[8:]),
	}
}

func encodeBTime(dst []byte, order binary.ByteOrder, t BTime) {
	order.PutUint16(dst[0:], t.Year)
	order.PutUint16(dst[2:], t.Day)
	dst[4] = t.Hour
	dst[5] = t.Minute
	dst[6] = t.Second
	dst[7] = 0
	order.PutUint16(dst[8:], t.Tenths)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// daysBeforeYear returns the day number of January 1st of y relative to the
// Unix epoch.
func daysBeforeYear(y int) int64 {
	y1 := int64(y - 1)
	leaps := floorDiv(y1, 4) - floorDiv(y1, 100) + floorDiv(y1, 400)
	return 365*int64(y-1970) + leaps - leapDaysBefore1970
}

func yearDay(days int64) (int, int) {
	y := 1970 + int(floorDiv(days, 365))
	for daysBeforeYear(y) > days {
		y--
	}
	for daysBeforeYear(y+1) <= days {
		y++
	}
	return y, int(days-daysBeforeYear(y)) + 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
