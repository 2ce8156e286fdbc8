package steim

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

func frame(key uint32, words ...uint32) []byte {
	f := make([]byte, frameSize)
	binary.BigEndian.PutUint32(f, key)
	for i, w := range words {
		binary.BigEndian.PutUint32(f[(i+1)*4:], w)
	}
	return f
}

func TestDecode_HandcraftedFrame(t *testing.T) {
	// word 3 holds four 8 bit differences: 0 +1 +1 +1
	f := frame(1<<24, 10, 13, 0x00010101)
	codec := New()

	for _, enc := range []mseed.Encoding{mseed.EncodingSteim1, mseed.EncodingSteim2} {
		samples, err := codec.Decode(f, 4, enc, false)
		require.NoError(t, err)
		assert.Equal(t, []int32{10, 11, 12, 13}, samples)
		assert.Equal(t, 4, codec.SampleCountInFrames(f, enc, false))
	}
}

func TestDecode_LittleEndianFrame(t *testing.T) {
	be := frame(1<<24, 10, 13, 0x00010101)
	le := make([]byte, frameSize)
	for w := 0; w < wordsPerFrame; w++ {
		binary.LittleEndian.PutUint32(le[w*4:], binary.BigEndian.Uint32(be[w*4:]))
	}
	samples, err := New().Decode(le, 4, mseed.EncodingSteim2, true)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 11, 12, 13}, samples)
}

func TestUnpack_Steim2Variants(t *testing.T) {
	testCases := []struct {
		name string
		word uint32
		nib  uint32
		want []int32
	}{
		{"one 30 bit", 1<<30 | 0x3fffffff, 2, []int32{-1}},
		{"two 15 bit", 2<<30 | 0x4000<<15 | 0x0001, 2, []int32{-16384, 1}},
		{"three 10 bit", 3<<30 | 0x1ff<<20 | 0x200<<10 | 0x005, 2, []int32{511, -512, 5}},
		{"five 6 bit", 0<<30 | 0x3f<<24 | 0x01<<18 | 0x20<<12 | 0x1f<<6 | 0x00, 3, []int32{-1, 1, -32, 31, 0}},
		{"six 5 bit", 1<<30 | 0x0f<<25 | 0x10<<20 | 0x01<<15 | 0x1f<<10 | 0x00<<5 | 0x02, 3, []int32{15, -16, 1, -1, 0, 2}},
		{"seven 4 bit", 2<<30 | 0x7<<24 | 0x8<<20 | 0x1<<16 | 0xf<<12 | 0x0<<8 | 0x3<<4 | 0xc, 3, []int32{7, -8, 1, -1, 0, 3, -4}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := unpack(nil, tc.word, tc.nib, mseed.EncodingSteim2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want), countWord(tc.word, tc.nib, mseed.EncodingSteim2))
		})
	}

	t.Run("bad dnib", func(t *testing.T) {
		_, err := unpack(nil, 0<<30, 2, mseed.EncodingSteim2)
		assert.ErrorIs(t, err, ErrBadNibble)
		_, err = unpack(nil, 3<<30, 3, mseed.EncodingSteim2)
		assert.ErrorIs(t, err, ErrBadNibble)
	})
}

func TestUnpack_Steim1Variants(t *testing.T) {
	got, err := unpack(nil, 0xfffe0003, 2, mseed.EncodingSteim1)
	require.NoError(t, err)
	assert.Equal(t, []int32{-2, 3}, got)

	got, err = unpack(nil, 0x80000000, 3, mseed.EncodingSteim1)
	require.NoError(t, err)
	assert.Equal(t, []int32{-1 << 31}, got)
}

func TestDecode_Mismatches(t *testing.T) {
	codec := New()

	t.Run("reverse integration", func(t *testing.T) {
		f := frame(1<<24, 10, 99, 0x00010101)
		samples, err := codec.Decode(f, 4, mseed.EncodingSteim2, false)
		var rie *mseed.ReverseIntegrationError
		require.True(t, errors.As(err, &rie))
		assert.Equal(t, int32(99), rie.Expected)
		assert.Equal(t, int32(13), rie.Found)
		assert.Equal(t, []int32{10, 11, 12, 13}, samples)
	})

	t.Run("sample count", func(t *testing.T) {
		f := frame(1<<24, 10, 13, 0x00010101)
		samples, err := codec.Decode(f, 6, mseed.EncodingSteim2, false)
		var sce *mseed.SampleCountError
		require.True(t, errors.As(err, &sce))
		assert.Equal(t, 6, sce.Expected)
		assert.Equal(t, 4, sce.Found)
		assert.Len(t, samples, 4)
	})

	t.Run("extra samples are truncated", func(t *testing.T) {
		f := frame(1<<24, 10, 12, 0x00010101)
		samples, err := codec.Decode(f, 3, mseed.EncodingSteim2, false)
		require.NoError(t, err)
		assert.Equal(t, []int32{10, 11, 12}, samples)
	})

	t.Run("short payload", func(t *testing.T) {
		_, err := codec.Decode(make([]byte, 10), 5, mseed.EncodingSteim2, false)
		var sce *mseed.SampleCountError
		assert.True(t, errors.As(err, &sce))

		samples, err := codec.Decode(nil, 0, mseed.EncodingSteim2, false)
		assert.NoError(t, err)
		assert.Empty(t, samples)
	})

	t.Run("not steim", func(t *testing.T) {
		_, err := codec.Decode(frame(0), 0, mseed.EncodingInt32, false)
		assert.ErrorIs(t, err, ErrNotSteim)
		assert.Zero(t, codec.SampleCountInFrames(frame(0), mseed.EncodingInt32, false))
	})
}

func randomWalk(n, step int, seed int64) []int32 {
	rng := rand.New(rand.NewSource(seed))
	s := make([]int32, n)
	for i := 1; i < n; i++ {
		s[i] = s[i-1] + int32(rng.Intn(2*step+1)-step)
	}
	return s
}

func compressAll(t *testing.T, req mseed.CompressRequest) []*mseed.Record {
	t.Helper()
	var out []*mseed.Record
	err := New().Compress(req, func(b []byte) error {
		r, err := mseed.FromBytes(b)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestCompress_RoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		enc     mseed.Encoding
		size    int
		samples []int32
	}{
		{"steim2 small steps", mseed.EncodingSteim2, 512, randomWalk(3000, 7, 1)},
		{"steim2 mixed widths", mseed.EncodingSteim2, 512, randomWalk(3000, 1<<20, 2)},
		{"steim2 4096", mseed.EncodingSteim2, 4096, randomWalk(10000, 300, 3)},
		{"steim1 small steps", mseed.EncodingSteim1, 512, randomWalk(2000, 100, 4)},
		{"steim1 wide", mseed.EncodingSteim1, 256, randomWalk(1000, 1<<28, 5)},
		{"single sample", mseed.EncodingSteim2, 512, []int32{-42}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			start := int64(1_600_000_000_000_000)
			recs := compressAll(t, mseed.CompressRequest{
				Name:          mseed.ParseNSCL("GSTEST HHZ  "),
				Indicator:     'R',
				Samples:       tc.samples,
				StartMicros:   start,
				Rate:          100,
				TimingQuality: -1,
				RecordSize:    tc.size,
				Encoding:      tc.enc,
			})
			require.NotEmpty(t, recs)

			codec := New()
			var all []int32
			elapsed := 0
			for i, r := range recs {
				assert.Equal(t, tc.size, r.RecordLength())
				assert.Equal(t, tc.enc, r.Encoding())
				assert.Equal(t, byte('R'), r.Indicator())
				assert.Nil(t, r.TimeExtension())
				assert.Equal(t, start+int64(elapsed)*10_000, r.TimeMicros(), "record %d", i)
				assert.Equal(t, r.Nsamp(), codec.SampleCountInFrames(r.Payload(), r.Encoding(), false))
				assert.Empty(t, r.Anomalies())

				s, err := codec.Decode(r.Payload(), r.Nsamp(), r.Encoding(), r.Swapped())
				require.NoError(t, err, "record %d", i)
				all = append(all, s...)
				elapsed += r.Nsamp()
			}
			assert.Equal(t, tc.samples, all)
		})
	}
}

func TestCompress_FrameCountAndSequence(t *testing.T) {
	recs := compressAll(t, mseed.CompressRequest{
		Name:          mseed.ParseNSCL("IUANMO BHZ00"),
		Samples:       randomWalk(5000, 50, 6),
		StartMicros:   1_600_000_000_000_000,
		Rate:          40,
		TimingQuality: 80,
		RecordSize:    512,
		Encoding:      mseed.EncodingSteim2,
	})
	require.Greater(t, len(recs), 1)
	for i, r := range recs {
		assert.Equal(t, 80, r.TimingQuality())
		assert.Equal(t, r.UsedFrameCount(), r.DeclaredFrameCount())
		assert.Equal(t, byte('D'), r.Indicator())
		assert.Equal(t, i+1, atoi(t, r.Sequence()))
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', s)
		n = n*10 + int(c-'0')
	}
	return n
}

func TestCompress_Errors(t *testing.T) {
	codec := New()
	sink := func([]byte) error { return nil }

	err := codec.Compress(mseed.CompressRequest{Samples: []int32{1}, RecordSize: 64}, sink)
	assert.ErrorIs(t, err, ErrNoFrames)

	err = codec.Compress(mseed.CompressRequest{
		Samples:    []int32{0, 1 << 30},
		RecordSize: 512,
		Rate:       1,
		Encoding:   mseed.EncodingSteim2,
	}, sink)
	assert.ErrorIs(t, err, ErrDiffTooWide)

	boom := errors.New("sink failed")
	err = codec.Compress(mseed.CompressRequest{
		Samples:    []int32{1, 2, 3},
		RecordSize: 512,
		Rate:       1,
	}, func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestCompress_FallsBackToSteim2(t *testing.T) {
	recs := compressAll(t, mseed.CompressRequest{
		Samples:       []int32{1, 2, 3},
		Rate:          1,
		TimingQuality: -1,
		RecordSize:    512,
		Encoding:      mseed.EncodingInt32,
	})
	require.Len(t, recs, 1)
	assert.Equal(t, mseed.EncodingSteim2, recs[0].Encoding())
}
