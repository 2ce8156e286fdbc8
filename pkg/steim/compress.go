package steim

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// packing describes one way to fill a data word: n differences of bits
// each, tagged with a control nibble and, for Steim2, a dnib.
type packing struct {
	n    int
	bits uint
	nib  uint32
	dnib uint32
}

// Densest first, so the greedy packer prefers small differences.
var (
	steim2Packings = []packing{
		{7, 4, 3, 2},
		{6, 5, 3, 1},
		{5, 6, 3, 0},
		{4, 8, 1, 0},
		{3, 10, 2, 3},
		{2, 15, 2, 2},
		{1, 30, 2, 1},
	}
	steim1Packings = []packing{
		{4, 8, 1, 0},
		{2, 16, 2, 0},
		{1, 32, 3, 0},
	}
)

func fits(diffs []int32, bits uint) bool {
	if bits >= 32 {
		return true
	}
	lo := -int32(1) << (bits - 1)
	hi := int32(1)<<(bits-1) - 1
	for _, d := range diffs {
		if d < lo || d > hi {
			return false
		}
	}
	return true
}

// packWord encodes the leading differences into one word and returns the
// word, its control nibble and the number of differences consumed.
func packWord(diffs []int32, enc mseed.Encoding) (uint32, uint32, int, error) {
	table := steim2Packings
	if enc == mseed.EncodingSteim1 {
		table = steim1Packings
	}
	for _, p := range table {
		if len(diffs) < p.n || !fits(diffs[:p.n], p.bits) {
			continue
		}
		var word uint32
		if enc == mseed.EncodingSteim2 && p.nib != 1 {
			word = p.dnib << 30
		}
		mask := uint32(1)<<p.bits - 1
		if p.bits == 32 {
			mask = math.MaxUint32
		}
		for i, d := range diffs[:p.n] {
			shift := p.bits * uint(p.n-1-i)
			word |= (uint32(d) & mask) << shift
		}
		return word, p.nib, p.n, nil
	}
	return 0, 0, 0, fmt.Errorf("%w: %d", ErrDiffTooWide, diffs[0])
}

// packFrames fills payload with as many differences as fit and writes the
// integration constants. samples and diffs are aligned; diffs[0] links to the
// previous record. It returns the samples consumed and the frames used.
func packFrames(payload []byte, samples, diffs []int32, enc mseed.Encoding) (int, int, error) {
	o := binary.BigEndian
	pos, used := 0, 0
	for f := 0; f+frameSize <= len(payload) && pos < len(diffs); f += frameSize {
		frame := payload[f : f+frameSize]
		var key uint32
		w := 1
		if f == 0 {
			w = 3
		}
		for ; w < wordsPerFrame && pos < len(diffs); w++ {
			word, nib, n, err := packWord(diffs[pos:], enc)
			if err != nil {
				return 0, 0, fmt.Errorf("sample %d: %w", pos, err)
			}
			o.PutUint32(frame[w*4:], word)
			key |= nib << (30 - 2*w)
			pos += n
		}
		o.PutUint32(frame, key)
		used++
	}
	if pos > 0 {
		o.PutUint32(payload[4:], uint32(samples[0]))
		o.PutUint32(payload[8:], uint32(samples[pos-1]))
	}
	return pos, used, nil
}

// Compress packs req.Samples into Steim records of req.RecordSize bytes and
// passes each one to sink. Start times advance by the samples already
// emitted divided by the rate. Encodings other than Steim1 fall back to
// Steim2.
func (c *Codec) Compress(req mseed.CompressRequest, sink func([]byte) error) error {
	enc := req.Encoding
	if enc != mseed.EncodingSteim1 {
		enc = mseed.EncodingSteim2
	}
	frames := (req.RecordSize - mseed.HeaderSize) / frameSize
	if frames < 1 {
		return ErrNoFrames
	}

	diffs := make([]int32, len(req.Samples))
	for i := 1; i < len(req.Samples); i++ {
		diffs[i] = req.Samples[i] - req.Samples[i-1]
	}

	payload := make([]byte, frames*frameSize)
	for seq, start := 1, 0; start < len(req.Samples); seq++ {
		clear(payload)
		n, used, err := packFrames(payload, req.Samples[start:], diffs[start:], enc)
		if err != nil {
			return err
		}
		h := &mseed.Header{
			Sequence:      seq,
			Indicator:     req.Indicator,
			Name:          req.Name,
			StartMicros:   startMicros(req.StartMicros, start, req.Rate),
			Nsamp:         n,
			Rate:          req.Rate,
			Activity:      req.Activity,
			IOClock:       req.IOClock,
			DataQuality:   req.DataQuality,
			Encoding:      enc,
			RecordLength:  req.RecordSize,
			TimingQuality: req.TimingQuality,
			FrameCount:    used,
		}
		buf, err := mseed.BuildRecord(h, payload)
		if err != nil {
			return err
		}
		if err := sink(buf); err != nil {
			return err
		}
		start += n
	}
	return nil
}

func startMicros(base int64, samples int, rate float64) int64 {
	if rate <= 0 {
		return base
	}
	return base + int64(math.Round(float64(samples)*1e6/rate))
}
