package mseed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ResegmentPath identifies how a record was split.
type ResegmentPath int

const (
	PathCopy ResegmentPath = iota // already at or below the target size
	PathFast                      // payload sliced on compression unit boundaries
	PathSlow                      // payload decoded and recompressed
)

func (p ResegmentPath) String() string {
	switch p {
	case PathCopy:
		return "copy"
	case PathFast:
		return "fast"
	case PathSlow:
		return "slow"
	}
	return "path(" + strconv.Itoa(int(p)) + ")"
}

// ResegmentOptions configures Record.Resegment.
type ResegmentOptions struct {
	// TargetSize is the output record length, DefaultRecordLength when 0.
	TargetSize int
	Decoder    Decoder
	// Compressor is only needed when the payload has to be recompressed.
	Compressor Compressor
	// Encoding overrides the input's Steim encoding when recompressing.
	Encoding Encoding
	// Alloc supplies output records; new records are created when nil.
	Alloc Allocator
	// OnComplete is called once with the path taken and the output count.
	OnComplete func(path ResegmentPath, outputs int)
}

// Resegment splits a record longer than the target size into target size
// records. Blockettes other than 100, 1000 and 1001 are carried in a leading
// header-only record. When the payload is a concatenation of independently
// compressed target size units the frames are sliced without re-encoding;
// otherwise the payload is decoded and recompressed.
//
// The data-bearing outputs hold exactly the input's samples; a mismatch is
// reported as an anomaly on r, not returned as an error.
func (r *Record) Resegment(opts ResegmentOptions) ([]*Record, error) {
	r.Crack()
	target := opts.TargetSize
	if target == 0 {
		target = DefaultRecordLength
	}
	if _, err := recordLengthPow(target); err != nil {
		return nil, fmt.Errorf("resegment: %w", err)
	}
	if target <= HeaderSize {
		return nil, fmt.Errorf("resegment: target size %d leaves no room for data", target)
	}
	if r.heartbeat || r.cleared || len(r.buf) < FixedHeaderSize {
		return nil, ErrHeartbeat
	}
	alloc := opts.Alloc
	if alloc == nil {
		alloc = newRecordAllocator{opts: r.opts}
	}
	done := func(path ResegmentPath, out []*Record) {
		if opts.OnComplete != nil {
			opts.OnComplete(path, len(out))
		}
	}

	if len(r.buf) <= target {
		c, err := alloc.Acquire(r.buf, 0, len(r.buf))
		if err != nil {
			return nil, err
		}
		out := []*Record{c}
		done(PathCopy, out)
		return out, nil
	}
	if !r.encoding.Steim() {
		return nil, fmt.Errorf("resegment %s: %w: %s", r.name, ErrUnsupportedEncoding, r.encoding)
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("resegment %s: %w", r.name, ErrNoCodec)
	}

	var out []*Record
	headerOnly, err := r.headerOnlyRecord(target, alloc)
	if err != nil {
		return nil, err
	}
	if headerOnly != nil {
		out = append(out, headerOnly)
	}
	dataStart := len(out)

	framesPerSlice := (target - HeaderSize) / FrameSize
	path := PathSlow
	if r.concatenatedUnits(framesPerSlice) {
		path = PathFast
		out, err = r.sliceFrames(target, framesPerSlice, opts.Decoder, alloc, out)
	} else {
		out, err = r.recompress(target, opts, alloc, out)
	}
	if err != nil {
		return out, err
	}

	total := 0
	for _, rec := range out[dataStart:] {
		total += rec.Nsamp()
	}
	if total != r.nsamp {
		r.report(ResegmentSampleCountMismatch, -1,
			fmt.Sprintf("%s path produced %d samples from %d", path, total, r.nsamp))
	}
	done(path, out)
	return out, nil
}

// sliceSequence derives the sequence number of the n-th output of a split.
func (r *Record) sliceSequence(n int) string {
	return "9" + string(r.sequence[1:5]) + strconv.Itoa(n%10)
}

// concatenatedUnits reports whether every framesPerSlice-th frame in use
// starts a new compression unit: the control nibbles of the key word and of
// the two integration constants are all zero.
func (r *Record) concatenatedUnits(framesPerSlice int) bool {
	if framesPerSlice <= 0 || r.dataOffset <= 0 {
		return false
	}
	used := r.usedFrames()
	if used == 0 {
		return false
	}
	payload := r.buf[r.dataOffset:]
	for f := 0; f < used; f += framesPerSlice {
		if (f+1)*FrameSize > len(payload) {
			return false
		}
		if r.order.Uint32(payload[f*FrameSize:])>>26 != 0 {
			return false
		}
	}
	return true
}

// headerOnlyRecord carries the blockettes a data record at the target size
// has no room for: everything but 100, 1000 and 1001.
func (r *Record) headerOnlyRecord(target int, alloc Allocator) (*Record, error) {
	var extras []Blockette
	for _, b := range r.blockettes {
		switch b.Type() {
		case TypeSampleRate, TypeDataExtension, TypeTimeExtension:
		default:
			extras = append(extras, b)
		}
	}
	if len(extras) == 0 {
		return nil, nil
	}

	o := r.order
	pow, _ := recordLengthPow(target)
	buf := make([]byte, target)
	copy(buf, r.buf[:FixedHeaderSize])
	o.PutUint16(buf[offNsamp:], 0)
	o.PutUint16(buf[offRateFactor:], 0)
	o.PutUint16(buf[offRateMult:], 0)
	o.PutUint16(buf[offDataOffset:], 0)
	o.PutUint16(buf[offFirstBlockett:], FixedHeaderSize)

	o.PutUint16(buf[48:], TypeDataExtension)
	buf[52] = byte(r.encoding)
	buf[53] = r.wordOrder()
	buf[54] = pow

	count := 1
	prev := 48
	off := 56
	for _, b := range extras {
		raw := b.Bytes()
		if r.dataOffset > b.Offset() && b.Offset()+len(raw) > r.dataOffset {
			raw = raw[:r.dataOffset-b.Offset()]
		}
		if off+len(raw) > target {
			r.report(MalformedBlocketteChain, b.Offset(),
				fmt.Sprintf("blockette %d does not fit the %d byte header record", b.Type(), target))
			break
		}
		copy(buf[off:], raw)
		o.PutUint16(buf[off+2:], 0)
		o.PutUint16(buf[prev+2:], uint16(off))
		prev = off
		off += len(raw)
		count++
	}
	buf[offBlocketteCnt] = byte(count)

	rec, err := alloc.Acquire(buf, 0, len(buf))
	if err != nil {
		return nil, fmt.Errorf("resegment %s: header record: %w", r.name, err)
	}
	rec.SetSequence(r.sliceSequence(0))
	return rec, nil
}

func (r *Record) wordOrder() uint8 {
	if r.dataExt != nil {
		return r.dataExt.WordOrder
	}
	if r.detect.Swapped {
		return 0
	}
	return 1
}

// sliceTemplate builds the 64 byte header every data slice starts from.
func (r *Record) sliceTemplate(target int) []byte {
	o := r.order
	pow, _ := recordLengthPow(target)
	h := make([]byte, HeaderSize)
	copy(h, r.buf[:FixedHeaderSize])
	o.PutUint16(h[offDataOffset:], HeaderSize)
	o.PutUint16(h[offFirstBlockett:], FixedHeaderSize)
	h[offBlocketteCnt] = 1

	o.PutUint16(h[48:], TypeDataExtension)
	h[52] = byte(r.encoding)
	h[53] = r.wordOrder()
	h[54] = pow
	if r.timeExt != nil {
		h[offBlocketteCnt] = 2
		o.PutUint16(h[50:], 56)
		o.PutUint16(h[56:], TypeTimeExtension)
		h[60] = r.timeExt.TimingQuality
	}
	return h
}

func (r *Record) sliceStart(samples int) int64 {
	rate := r.Rate()
	if rate <= 0 {
		return r.timeMicros
	}
	return r.timeMicros + int64(math.Round(float64(samples)*1e6/rate))
}

func (r *Record) sliceFrames(target, framesPerSlice int, dec Decoder, alloc Allocator, out []*Record) ([]*Record, error) {
	tmpl := r.sliceTemplate(target)
	payload := r.buf[r.dataOffset:]
	chunkSize := framesPerSlice * FrameSize
	used := r.usedFrames() * FrameSize
	if used > len(payload) {
		used = len(payload)
	}

	samples := 0
	buf := make([]byte, target)
	for i, pos := 1, 0; pos < used; i, pos = i+1, pos+chunkSize {
		end := pos + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[pos:end]
		clear(buf)
		copy(buf, tmpl)
		copy(buf[HeaderSize:], chunk)

		rec, err := alloc.Acquire(buf, 0, target)
		if err != nil {
			return out, fmt.Errorf("resegment %s: slice %d: %w", r.name, i, err)
		}
		n := dec.SampleCountInFrames(chunk, r.encoding, r.detect.Swapped)
		rec.SetNsamp(n)
		rec.SetTimeMicros(r.sliceStart(samples))
		rec.SetSequence(r.sliceSequence(i))
		rec.setFrameCount(rec.UsedFrameCount())
		r.fixReverseIntegration(rec, dec, i)

		samples += n
		out = append(out, rec)
	}
	return out, nil
}

// fixReverseIntegration decodes a slice and, if its stored reverse
// integration constant disagrees with the decoded last sample, patches the
// constant and decodes again to confirm.
func (r *Record) fixReverseIntegration(rec *Record, dec Decoder, slice int) {
	_, err := dec.Decode(rec.Payload(), rec.Nsamp(), r.encoding, r.detect.Swapped)
	if err == nil {
		return
	}
	var rie *ReverseIntegrationError
	if !errors.As(err, &rie) {
		r.report(CodecFailure, -1, fmt.Sprintf("slice %d: %v", slice, err))
		return
	}
	rec.SetReverseIntegration(rie.Found)
	if _, err := dec.Decode(rec.Payload(), rec.Nsamp(), r.encoding, r.detect.Swapped); err != nil {
		r.report(CodecFailure, -1, fmt.Sprintf("slice %d: reverse integration still wrong after fix: %v", slice, err))
	}
}

func (r *Record) recompress(target int, opts ResegmentOptions, alloc Allocator, out []*Record) ([]*Record, error) {
	if opts.Compressor == nil {
		return out, fmt.Errorf("resegment %s: %w: no compressor", r.name, ErrNoCodec)
	}
	samples, err := opts.Decoder.Decode(r.Payload(), r.nsamp, r.encoding, r.detect.Swapped)
	if err != nil {
		var rie *ReverseIntegrationError
		var sce *SampleCountError
		if !errors.As(err, &rie) && !errors.As(err, &sce) {
			return out, fmt.Errorf("resegment %s: decode: %w", r.name, err)
		}
		r.report(CodecFailure, r.dataOffset, err.Error())
	}

	req := CompressRequest{
		Name:          r.name,
		Indicator:     r.indicator,
		Samples:       samples,
		StartMicros:   r.timeMicros,
		Rate:          r.Rate(),
		Activity:      r.activity,
		IOClock:       r.ioClock,
		DataQuality:   r.quality,
		TimingQuality: r.TimingQuality(),
		RecordSize:    target,
		Encoding:      r.encoding,
	}
	if opts.Encoding.Steim() {
		req.Encoding = opts.Encoding
	}
	i := 1
	err = opts.Compressor.Compress(req, func(b []byte) error {
		rec, err := alloc.Acquire(b, 0, len(b))
		if err != nil {
			return err
		}
		rec.SetSequence(r.sliceSequence(i))
		i++
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("resegment %s: compress: %w", r.name, err)
	}
	return out, nil
}

func (r *Record) setFrameCount(n int) {
	if r.timeExt == nil {
		return
	}
	r.timeExt.FrameCount = uint8(n)
	r.timeExt.Encode(r.order)
	r.writeBlockette(r.timeExt)
}
