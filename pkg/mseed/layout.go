package mseed

import "fmt"

// Fixed header offsets.
const (
	offSequence      = 0
	offIndicator     = 6
	offReserved      = 7
	offStation       = 8
	offLocation      = 13
	offChannel       = 15
	offNetwork       = 18
	offStartTime     = 20
	offNsamp         = 30
	offRateFactor    = 32
	offRateMult      = 34
	offActivity      = 36
	offIOClock       = 37
	offDataQuality   = 38
	offBlocketteCnt  = 39
	offTimeCorr      = 40
	offDataOffset    = 44
	offFirstBlockett = 46

	// FixedHeaderSize is the size of the SEED fixed section of data header.
	FixedHeaderSize = 48
	// FrameSize is the size of a Steim compression frame.
	FrameSize = 64
	// DefaultRecordLength is the canonical record size downstream storage expects.
	DefaultRecordLength = 512
	// MaxRecordLength is the largest record length blockette 1000 can declare
	// that this package accepts.
	MaxRecordLength = 1 << 16
	// NameLength is the length of a canonical NSCL.
	NameLength = 12

	minRecordPow = 7
	maxRecordPow = 16
)

// Encoding is the payload encoding code carried in blockette 1000.
type Encoding uint8

const (
	EncodingASCII   Encoding = 0
	EncodingInt16   Encoding = 1
	EncodingInt24   Encoding = 2
	EncodingInt32   Encoding = 3
	EncodingFloat32 Encoding = 4
	EncodingFloat64 Encoding = 5
	EncodingSteim1  Encoding = 10
	EncodingSteim2  Encoding = 11
	EncodingUnknown Encoding = 255
)

// Steim reports whether e is one of the Steim frame encodings.
func (e Encoding) Steim() bool {
	return e == EncodingSteim1 || e == EncodingSteim2
}

func (e Encoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingInt16:
		return "int16"
	case EncodingInt24:
		return "int24"
	case EncodingInt32:
		return "int32"
	case EncodingFloat32:
		return "float32"
	case EncodingFloat64:
		return "float64"
	case EncodingSteim1:
		return "steim1"
	case EncodingSteim2:
		return "steim2"
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

// NSCL is the canonical 12 byte channel identity: network(2) station(5)
// channel(3) location(2).
type NSCL [NameLength]byte

func (n NSCL) String() string { return string(n[:]) }

// Network returns the two character network code.
func (n NSCL) Network() string { return string(n[0:2]) }

// Station returns the five character station code.
func (n NSCL) Station() string { return string(n[2:7]) }

// Channel returns the three character channel code.
func (n NSCL) Channel() string { return string(n[7:10]) }

// Location returns the two character location code.
func (n NSCL) Location() string { return string(n[10:12]) }

// ParseNSCL pads or truncates s into an NSCL.
func ParseNSCL(s string) NSCL {
	var n NSCL
	for i := range n {
		n[i] = ' '
	}
	copy(n[:], s)
	return n
}

// readName converts the on-disk station/location/channel/network order into
// NSCL order.
func readName(buf []byte) NSCL {
	var n NSCL
	copy(n[0:2], buf[offNetwork:offNetwork+2])
	copy(n[2:7], buf[offStation:offStation+5])
	copy(n[7:10], buf[offChannel:offChannel+3])
	copy(n[10:12], buf[offLocation:offLocation+2])
	return n
}

func writeName(buf []byte, n NSCL) {
	copy(buf[offNetwork:offNetwork+2], n[0:2])
	copy(buf[offStation:offStation+5], n[2:7])
	copy(buf[offChannel:offChannel+3], n[7:10])
	copy(buf[offLocation:offLocation+2], n[10:12])
}
