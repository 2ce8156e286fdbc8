package mseed

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochMicros_MatchesTimePackage(t *testing.T) {
	testCases := []struct {
		name string
		bt   BTime
		when time.Time
	}{
		{"epoch", BTime{Year: 1970, Day: 1}, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"leap day", BTime{Year: 2024, Day: 60, Hour: 12, Minute: 30, Second: 15, Tenths: 5000}, time.Date(2024, 2, 29, 12, 30, 15, 500_000_000, time.UTC)},
		{"last day of leap year", BTime{Year: 2000, Day: 366, Hour: 23, Minute: 59, Second: 59, Tenths: 9999}, time.Date(2000, 12, 31, 23, 59, 59, 999_900_000, time.UTC)},
		{"century non leap", BTime{Year: 2100, Day: 59}, time.Date(2100, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"before epoch", BTime{Year: 1969, Day: 365, Hour: 23}, time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.when.UnixMicro(), EpochMicros(tc.bt, 0))
		})
	}
}

func TestBTimeFromMicros_RoundTrip(t *testing.T) {
	testCases := []struct {
		bt    BTime
		extra int
	}{
		{BTime{Year: 1970, Day: 1}, 0},
		{BTime{Year: 1988, Day: 123, Hour: 4, Minute: 5, Second: 6, Tenths: 7}, 0},
		{BTime{Year: 2006, Day: 200, Hour: 23, Minute: 59, Second: 59, Tenths: 9999}, 99},
		{BTime{Year: 2024, Day: 366, Hour: 12, Minute: 0, Second: 0, Tenths: 1}, 42},
		{BTime{Year: 2099, Day: 1, Hour: 1, Minute: 1, Second: 1, Tenths: 1234}, 56},
		{BTime{Year: 1969, Day: 100, Hour: 3, Minute: 2, Second: 1, Tenths: 5}, 7},
	}

	for _, tc := range testCases {
		t.Run(tc.bt.String(), func(t *testing.T) {
			us := EpochMicros(tc.bt, tc.extra)
			got, extra := BTimeFromMicros(us)
			assert.Equal(t, tc.bt, got)
			assert.Equal(t, tc.extra, extra)
		})
	}
}

func TestBTimeFromMillis_RoundTrip(t *testing.T) {
	// millisecond precision holds whenever tenths is a whole millisecond
	for _, tenths := range []uint16{0, 10, 990, 5000, 9990} {
		bt := BTime{Year: 2015, Day: 32, Hour: 6, Minute: 7, Second: 8, Tenths: tenths}
		assert.Equal(t, bt, BTimeFromMillis(EpochMillis(bt, 0)))
	}
}

func TestEpochMillis_Rounding(t *testing.T) {
	testCases := []struct {
		name      string
		tenths    uint16
		extra     int
		rounded   int64
		truncated int64
	}{
		{"exact", 10, 0, 1, 1},
		{"below half", 4, 99, 0, 0},
		{"half rounds up", 5, 0, 1, 0},
		{"extra carries past half", 4, 100, 1, 0},
		{"just under next", 19, 99, 2, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bt := BTime{Year: 1970, Day: 1, Tenths: tc.tenths}
			assert.Equal(t, tc.rounded, EpochMillis(bt, tc.extra))
			assert.Equal(t, tc.truncated, EpochMillisTruncated(bt, tc.extra))
		})
	}

	t.Run("negative floors", func(t *testing.T) {
		bt := BTime{Year: 1969, Day: 365, Hour: 23, Minute: 59, Second: 59, Tenths: 9995}
		assert.Equal(t, int64(-1), EpochMillisTruncated(bt, 0))
		assert.Equal(t, int64(0), EpochMillis(bt, 0))
	})
}

func TestBTime_Plausible(t *testing.T) {
	good := BTime{Year: 2020, Day: 366, Hour: 23, Minute: 59, Second: 60, Tenths: 9999}
	assert.NoError(t, good.Plausible(1970, 2100))

	testCases := []struct {
		name string
		bt   BTime
	}{
		{"year too early", BTime{Year: 1969, Day: 1}},
		{"year too late", BTime{Year: 2101, Day: 1}},
		{"day zero", BTime{Year: 2020, Day: 0}},
		{"day 366 of common year", BTime{Year: 2021, Day: 366}},
		{"hour", BTime{Year: 2020, Day: 1, Hour: 24}},
		{"minute", BTime{Year: 2020, Day: 1, Minute: 60}},
		{"second", BTime{Year: 2020, Day: 1, Second: 61}},
		{"tenths", BTime{Year: 2020, Day: 1, Tenths: 10000}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.bt.Plausible(1970, 2100))
		})
	}
}

func TestBTime_EncodeDecode(t *testing.T) {
	bt := BTime{Year: 2011, Day: 77, Hour: 5, Minute: 46, Second: 24, Tenths: 1200}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		buf := make([]byte, 10)
		encodeBTime(buf, order, bt)
		require.Equal(t, bt, decodeBTime(buf, order))
	}
}
