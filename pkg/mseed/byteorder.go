package mseed

import "encoding/binary"

// Detection is the outcome of inspecting a raw record for its byte order.
type Detection struct {
	Swapped   bool // multi-byte fields are little-endian
	Ambiguous bool // geometry gave no answer and no blockette 1000 was found
	Corrected bool // blockette 1000 word order overrode the geometry guess
	NameValid bool // sequence number, indicator and separator were well formed
	// DataExtension is the offset of the first blockette 1000, or 0.
	DataExtension int
}

// Order returns the binary.ByteOrder for the detected layout.
func (d Detection) Order() binary.ByteOrder {
	if d.Swapped {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// DetectByteOrder decides whether the header of buf is big-endian (the SEED
// standard) or little-endian. The fixed-header geometry gives a first guess;
// a blockette 1000 word-order byte, when present, is authoritative. In strict
// mode a malformed record name is an error, otherwise it is only flagged.
func DetectByteOrder(buf []byte, strict bool) (Detection, error) {
	var d Detection
	if len(buf) < FixedHeaderSize {
		return d, ErrShortRecord
	}
	d.NameValid = validName(buf)
	if !d.NameValid && strict {
		return d, ErrInvalidRecordName
	}

	if buf[offBlocketteCnt] == 0 {
		d.Swapped = binary.BigEndian.Uint16(buf[offDataOffset:]) > 512
	} else {
		first := binary.BigEndian.Uint16(buf[offFirstBlockett:])
		if first < FixedHeaderSize || first > 64 {
			le := binary.LittleEndian.Uint16(buf[offFirstBlockett:])
			if le <= 200 {
				d.Swapped = true
			} else {
				d.Ambiguous = true
			}
		}
	}

	guess := d.Order()
	off := findDataExtension(buf, guess)
	if off == 0 {
		off = findDataExtension(buf, otherOrder(guess))
	}
	if off == 0 {
		return d, nil
	}
	d.DataExtension = off
	d.Ambiguous = false
	wordOrderBig := buf[off+5] != 0
	if wordOrderBig == d.Swapped {
		d.Swapped = !wordOrderBig
		d.Corrected = true
	}
	return d, nil
}

func otherOrder(o binary.ByteOrder) binary.ByteOrder {
	if o == binary.LittleEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// findDataExtension walks the blockette chain in the given order and returns
// the offset of the first type 1000 blockette, or 0.
func findDataExtension(buf []byte, order binary.ByteOrder) int {
	n := int(buf[offBlocketteCnt])
	off := int(order.Uint16(buf[offFirstBlockett:]))
	for i := 0; i < n; i++ {
		if off < FixedHeaderSize || off+8 > len(buf) {
			return 0
		}
		if order.Uint16(buf[off:]) == TypeDataExtension {
			return off
		}
		next := int(order.Uint16(buf[off+2:]))
		if next <= off {
			return 0
		}
		off = next
	}
	return 0
}

func validName(buf []byte) bool {
	for i := offSequence; i < offSequence+6; i++ {
		c := buf[i]
		if (c < '0' || c > '9') && c != ' ' {
			return false
		}
	}
	switch buf[offIndicator] {
	case 'D', 'R', 'Q', 'M':
	default:
		return false
	}
	return buf[offReserved] == ' ' || buf[offReserved] == '~'
}

// isHeartbeat matches the keep-alive pattern some telemetry producers send:
// the first 18 bytes are all '0', space or NUL.
func isHeartbeat(buf []byte) bool {
	if len(buf) < 18 {
		return false
	}
	for _, c := range buf[:18] {
		if c != 0 && c != ' ' && c != '0' {
			return false
		}
	}
	return true
}
