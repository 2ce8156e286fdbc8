package steim

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

const (
	frameSize     = mseed.FrameSize
	wordsPerFrame = 16
)

// Errors
var (
	ErrBadNibble   = &CodecError{"invalid Steim control nibble"}
	ErrNotSteim    = &CodecError{"encoding is not Steim1 or Steim2"}
	ErrDiffTooWide = &CodecError{"difference does not fit in 30 bits"}
	ErrNoFrames    = &CodecError{"record size leaves no room for frames"}
)

// CodecError represents a Steim codec error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}

// Codec decodes and encodes Steim1 and Steim2 frames. It is stateless and
// safe for concurrent use.
type Codec struct{}

// New creates a Steim codec.
func New() *Codec {
	return &Codec{}
}

func byteOrder(swapped bool) binary.ByteOrder {
	if swapped {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func nibble(key uint32, w int) uint32 {
	return key >> (30 - 2*w) & 3
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// unpack appends the differences held in one data word.
func unpack(diffs []int32, word, nib uint32, enc mseed.Encoding) ([]int32, error) {
	switch nib {
	case 0:
		return diffs, nil
	case 1:
		return append(diffs,
			int32(int8(word>>24)), int32(int8(word>>16)), int32(int8(word>>8)), int32(int8(word))), nil
	}
	if enc == mseed.EncodingSteim1 {
		if nib == 2 {
			return append(diffs, int32(int16(word>>16)), int32(int16(word))), nil
		}
		return append(diffs, int32(word)), nil
	}

	dnib := word >> 30
	switch {
	case nib == 2 && dnib == 1:
		return append(diffs, signExtend(word&0x3fffffff, 30)), nil
	case nib == 2 && dnib == 2:
		return append(diffs, signExtend(word>>15&0x7fff, 15), signExtend(word&0x7fff, 15)), nil
	case nib == 2 && dnib == 3:
		return append(diffs,
			signExtend(word>>20&0x3ff, 10), signExtend(word>>10&0x3ff, 10), signExtend(word&0x3ff, 10)), nil
	case nib == 3 && dnib == 0:
		for shift := 24; shift >= 0; shift -= 6 {
			diffs = append(diffs, signExtend(word>>uint(shift)&0x3f, 6))
		}
		return diffs, nil
	case nib == 3 && dnib == 1:
		for shift := 25; shift >= 0; shift -= 5 {
			diffs = append(diffs, signExtend(word>>uint(shift)&0x1f, 5))
		}
		return diffs, nil
	case nib == 3 && dnib == 2:
		for shift := 24; shift >= 0; shift -= 4 {
			diffs = append(diffs, signExtend(word>>uint(shift)&0xf, 4))
		}
		return diffs, nil
	}
	return diffs, fmt.Errorf("%w: nibble %d dnib %d", ErrBadNibble, nib, dnib)
}

// countWord returns the number of differences in one data word without
// unpacking them.
func countWord(word, nib uint32, enc mseed.Encoding) int {
	switch nib {
	case 0:
		return 0
	case 1:
		return 4
	}
	if enc == mseed.EncodingSteim1 {
		if nib == 2 {
			return 2
		}
		return 1
	}
	dnib := word >> 30
	if nib == 2 {
		switch dnib {
		case 1:
			return 1
		case 2:
			return 2
		case 3:
			return 3
		}
		return 0
	}
	switch dnib {
	case 0:
		return 5
	case 1:
		return 6
	case 2:
		return 7
	}
	return 0
}

// differences walks every data word of frames. Words 1 and 2 of the first
// frame hold the integration constants and are returned separately.
func differences(frames []byte, enc mseed.Encoding, swapped bool, limit int) (diffs []int32, x0, xn int32, err error) {
	o := byteOrder(swapped)
	diffs = make([]int32, 0, limit)
	for f := 0; f+frameSize <= len(frames); f += frameSize {
		frame := frames[f : f+frameSize]
		key := o.Uint32(frame)
		for w := 1; w < wordsPerFrame; w++ {
			word := o.Uint32(frame[w*4:])
			if f == 0 && w == 1 {
				x0 = int32(word)
				continue
			}
			if f == 0 && w == 2 {
				xn = int32(word)
				continue
			}
			if diffs, err = unpack(diffs, word, nibble(key, w), enc); err != nil {
				return diffs, x0, xn, fmt.Errorf("frame %d word %d: %w", f/frameSize, w, err)
			}
		}
		if limit > 0 && len(diffs) >= limit {
			break
		}
	}
	return diffs, x0, xn, nil
}

// Decode integrates the differences in frames into samples. On a sample
// count or reverse integration mismatch the decoded samples are returned
// with the corresponding mseed error.
func (c *Codec) Decode(frames []byte, expected int, enc mseed.Encoding, swapped bool) ([]int32, error) {
	if !enc.Steim() {
		return nil, ErrNotSteim
	}
	if len(frames) < frameSize {
		if expected == 0 {
			return nil, nil
		}
		return nil, &mseed.SampleCountError{Expected: expected, Found: 0}
	}
	diffs, x0, xn, err := differences(frames, enc, swapped, expected)
	if err != nil {
		return nil, err
	}
	if expected > 0 && len(diffs) > expected {
		diffs = diffs[:expected]
	}

	samples := diffs
	if len(samples) > 0 {
		samples[0] = x0
		for i := 1; i < len(samples); i++ {
			samples[i] = samples[i-1] + diffs[i]
		}
	}
	if len(samples) != expected {
		return samples, &mseed.SampleCountError{Expected: expected, Found: len(samples)}
	}
	if len(samples) > 0 && samples[len(samples)-1] != xn {
		return samples, &mseed.ReverseIntegrationError{Expected: xn, Found: samples[len(samples)-1]}
	}
	return samples, nil
}

// SampleCountInFrames counts the samples held in frames from the control
// nibbles alone.
func (c *Codec) SampleCountInFrames(frames []byte, enc mseed.Encoding, swapped bool) int {
	if !enc.Steim() {
		return 0
	}
	o := byteOrder(swapped)
	n := 0
	for f := 0; f+frameSize <= len(frames); f += frameSize {
		frame := frames[f : f+frameSize]
		key := o.Uint32(frame)
		for w := 1; w < wordsPerFrame; w++ {
			if f == 0 && (w == 1 || w == 2) {
				continue
			}
			n += countWord(o.Uint32(frame[w*4:]), nibble(key, w), enc)
		}
	}
	return n
}
