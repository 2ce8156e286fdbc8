package mseed

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
)

// HeaderSize is the size of the header WriteHeader produces: the fixed
// section, blockette 1000 and room for blockette 1001.
const HeaderSize = 64

// Header describes a record to be built from scratch.
type Header struct {
	Sequence       int
	Indicator      byte
	Name           NSCL
	StartMicros    int64
	Nsamp          int
	Rate           float64
	Activity       uint8
	IOClock        uint8
	DataQuality    uint8
	TimeCorrection int32
	Encoding       Encoding
	RecordLength   int
	// TimingQuality adds a blockette 1001 when it is 0..100.
	TimingQuality int
	FrameCount    int
	Swapped       bool
}

// recordLengthPow returns log2(n) for a legal record length.
func recordLengthPow(n int) (uint8, error) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf("record length %d is not a power of two", n)
	}
	pow := bits.Len(uint(n)) - 1
	if pow < minRecordPow || pow > maxRecordPow {
		return 0, fmt.Errorf("record length %d outside [%d,%d]", n, 1<<minRecordPow, 1<<maxRecordPow)
	}
	return uint8(pow), nil
}

// WriteHeader writes a 64 byte header into dst: the fixed section, blockette
// 1000 at 48 and, when h.TimingQuality is 0..100, blockette 1001 at 56. The
// data offset is 64.
func WriteHeader(dst []byte, h *Header) error {
	if len(dst) < HeaderSize {
		return ErrShortRecord
	}
	pow, err := recordLengthPow(h.RecordLength)
	if err != nil {
		return err
	}
	var o binary.ByteOrder = binary.BigEndian
	wordOrder := uint8(1)
	if h.Swapped {
		o = binary.LittleEndian
		wordOrder = 0
	}
	clear(dst[:HeaderSize])

	seq := strconv.Itoa(h.Sequence % 1_000_000)
	for i := 0; i < 6; i++ {
		dst[i] = '0'
	}
	copy(dst[6-len(seq):6], seq)
	dst[offIndicator] = h.Indicator
	if dst[offIndicator] == 0 {
		dst[offIndicator] = 'D'
	}
	dst[offReserved] = ' '
	writeName(dst, h.Name)

	t, extra := BTimeFromMicros(h.StartMicros)
	encodeBTime(dst[offStartTime:], o, t)
	o.PutUint16(dst[offNsamp:], uint16(h.Nsamp))
	factor, mult := FactorMultiplier(h.Rate)
	o.PutUint16(dst[offRateFactor:], uint16(factor))
	o.PutUint16(dst[offRateMult:], uint16(mult))
	dst[offActivity] = h.Activity
	dst[offIOClock] = h.IOClock
	dst[offDataQuality] = h.DataQuality
	o.PutUint32(dst[offTimeCorr:], uint32(h.TimeCorrection))
	o.PutUint16(dst[offDataOffset:], HeaderSize)
	o.PutUint16(dst[offFirstBlockett:], FixedHeaderSize)

	hasTimeExt := h.TimingQuality >= 0 && h.TimingQuality <= 100
	dst[offBlocketteCnt] = 1
	o.PutUint16(dst[48:], TypeDataExtension)
	if hasTimeExt {
		dst[offBlocketteCnt] = 2
		o.PutUint16(dst[50:], 56)
	}
	dst[52] = byte(h.Encoding)
	dst[53] = wordOrder
	dst[54] = pow

	if hasTimeExt {
		o.PutUint16(dst[56:], TypeTimeExtension)
		dst[60] = uint8(h.TimingQuality)
		dst[61] = byte(int8(extra))
		dst[63] = uint8(h.FrameCount)
	}
	return nil
}

// BuildRecord returns a new record of h.RecordLength bytes holding the header
// and payload.
func BuildRecord(h *Header, payload []byte) ([]byte, error) {
	if HeaderSize+len(payload) > h.RecordLength {
		return nil, fmt.Errorf("payload of %d bytes does not fit a %d byte record", len(payload), h.RecordLength)
	}
	buf := make([]byte, h.RecordLength)
	if err := WriteHeader(buf, h); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], payload)
	return buf, nil
}
