package mseed

// Decoder is the payload decompression adapter used by resegmentation.
//
// Decode returns the samples held in frames. When the frames decode but the
// result disagrees with the header, the samples are returned together with a
// *ReverseIntegrationError or *SampleCountError.
type Decoder interface {
	Decode(frames []byte, expected int, enc Encoding, swapped bool) ([]int32, error)
	// SampleCountInFrames counts the samples in frames without decoding them.
	SampleCountInFrames(frames []byte, enc Encoding, swapped bool) int
}

// CompressRequest carries everything needed to build records from samples.
type CompressRequest struct {
	Name          NSCL
	Indicator     byte
	Samples       []int32
	StartMicros   int64
	Rate          float64
	Activity      uint8
	IOClock       uint8
	DataQuality   uint8
	TimingQuality int // -1 when the source had no blockette 1001
	RecordSize    int
	Encoding      Encoding
}

// Compressor turns samples back into complete records, calling sink once per
// record in time order.
type Compressor interface {
	Compress(req CompressRequest, sink func(record []byte) error) error
}

// Allocator supplies the records resegmentation emits.
type Allocator interface {
	Acquire(buf []byte, off, n int) (*Record, error)
}

type newRecordAllocator struct {
	opts options
}

func (a newRecordAllocator) Acquire(buf []byte, off, n int) (*Record, error) {
	r := &Record{opts: a.opts}
	if err := r.LoadAt(buf, off, n); err != nil {
		return nil, err
	}
	return r, nil
}
