package mseed

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawBlockette struct {
	typ  uint16
	body []byte // everything after the type and next fields
}

func dataExtBody(enc Encoding, pow uint8) []byte { return []byte{byte(enc), 1, pow, 0} }
func timeExtBody(quality uint8, micros int8) []byte {
	return []byte{quality, byte(micros), 0, 0}
}

// chainRecord builds a big-endian 512 byte record whose chain is bls, laid
// out back to back from offset 48.
func chainRecord(t *testing.T, h *Header, bls []rawBlockette, dataOffset int) []byte {
	t.Helper()
	buf := buildTestRecord(t, h, nil)
	clear(buf[FixedHeaderSize:])
	off := FixedHeaderSize
	for i, b := range bls {
		next := 0
		if i < len(bls)-1 {
			next = off + 4 + len(b.body)
		}
		binary.BigEndian.PutUint16(buf[off:], b.typ)
		binary.BigEndian.PutUint16(buf[off+2:], uint16(next))
		copy(buf[off+4:], b.body)
		off += 4 + len(b.body)
	}
	buf[offBlocketteCnt] = byte(len(bls))
	binary.BigEndian.PutUint16(buf[offDataOffset:], uint16(dataOffset))
	return buf
}

func sevenBlockettes() []rawBlockette {
	rate := make([]byte, 8)
	binary.BigEndian.PutUint32(rate, math.Float32bits(40))
	return []rawBlockette{
		{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
		{TypeTimeExtension, timeExtBody(90, 56)},
		{TypeSampleRate, rate},
		{TypeCalibrationAbort, make([]byte, 12)},
		{TypeCalibrationAbort, make([]byte, 12)},
		{TypeCalibrationAbort, make([]byte, 12)},
		{TypeBeamDelay, []byte{0, 0}},
	}
}

func TestDecodeChain_AllVariants(t *testing.T) {
	seen, obs := collect()
	buf := chainRecord(t, testHeader(), sevenBlockettes(), 192)
	r, err := FromBytes(buf, WithObserver(obs))
	require.NoError(t, err)

	bls := r.Blockettes()
	require.Len(t, bls, 7)
	assert.Empty(t, *seen)

	wantTypes := []uint16{1000, 1001, 100, 395, 395, 395, 405}
	wantOffsets := []int{48, 56, 64, 76, 92, 108, 124}
	for i, b := range bls {
		assert.Equal(t, wantTypes[i], b.Type())
		assert.Equal(t, wantOffsets[i], b.Offset())
	}
	assert.Zero(t, bls[6].Next())

	// three blockettes of one type get three distinct slots
	assert.NotSame(t, bls[3], bls[4])
	assert.NotSame(t, bls[4], bls[5])

	assert.Equal(t, 90, r.TimingQuality())
	assert.Equal(t, float64(40), r.Rate(), "blockette 100 wins over the header rate")
	factor, mult := r.RateFactorMultiplier()
	assert.Equal(t, float64(20), Rate(factor, mult))
	assert.Equal(t, 192, r.DataOffset())
}

func TestDecodeChain_CorruptOffsetKeepsPriorBlockettes(t *testing.T) {
	seen, obs := collect()
	buf := chainRecord(t, testHeader(), sevenBlockettes(), 192)
	// the 4th blockette points the 5th outside the record
	binary.BigEndian.PutUint16(buf[76+2:], 600)

	r, err := FromBytes(buf, WithObserver(obs))
	require.NoError(t, err)

	assert.Len(t, r.Blockettes(), 4)
	require.Len(t, *seen, 1)
	assert.Equal(t, MalformedBlocketteChain, (*seen)[0].Kind)
	assert.Equal(t, 600, (*seen)[0].Offset)
	assert.Equal(t, "IUANMO BHZ00", (*seen)[0].Name)
	assert.Len(t, r.Anomalies(), 1)
}

func TestDecodeChain_Terminations(t *testing.T) {
	t.Run("early end of chain", func(t *testing.T) {
		buf := chainRecord(t, testHeader(), sevenBlockettes()[:3], 128)
		buf[offBlocketteCnt] = 5
		r, err := FromBytes(buf)
		require.NoError(t, err)
		assert.Len(t, r.Blockettes(), 3)
		assert.Equal(t, []AnomalyKind{MalformedBlocketteChain}, kinds(r.Anomalies()))
	})

	t.Run("backwards pointer", func(t *testing.T) {
		buf := chainRecord(t, testHeader(), sevenBlockettes()[:3], 128)
		binary.BigEndian.PutUint16(buf[56+2:], 48)
		r, err := FromBytes(buf)
		require.NoError(t, err)
		assert.Len(t, r.Blockettes(), 2)
		assert.Equal(t, []AnomalyKind{MalformedBlocketteChain}, kinds(r.Anomalies()))
	})

	t.Run("fixed size overruns record", func(t *testing.T) {
		bls := []rawBlockette{
			{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
			{TypeTiming, nil},
		}
		buf := chainRecord(t, testHeader(), bls, 0)
		binary.BigEndian.PutUint16(buf[50:], 400)
		binary.BigEndian.PutUint16(buf[400:], TypeTiming)
		r, err := FromBytes(buf)
		require.NoError(t, err)
		assert.Len(t, r.Blockettes(), 1)
		assert.Equal(t, []AnomalyKind{MalformedBlocketteChain}, kinds(r.Anomalies()))
	})

	t.Run("unknown shorter than its header", func(t *testing.T) {
		bls := []rawBlockette{
			{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
			{999, make([]byte, 4)},
			{888, nil},
		}
		buf := chainRecord(t, testHeader(), bls, 0)
		binary.BigEndian.PutUint16(buf[56+2:], 58)
		r, err := FromBytes(buf)
		require.NoError(t, err)
		require.Len(t, r.Blockettes(), 1)
		assert.Equal(t, []AnomalyKind{MalformedBlocketteChain}, kinds(r.Anomalies()))
		for _, b := range r.Blockettes() {
			assert.NotPanics(t, func() { b.Encode(r.ByteOrder()) })
		}
	})

	t.Run("opaque length shorter than its header", func(t *testing.T) {
		for _, length := range []uint16{1, 2, 3} {
			bls := []rawBlockette{
				{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
				{TypeOpaque, make([]byte, 28)},
			}
			buf := chainRecord(t, testHeader(), bls, 0)
			binary.BigEndian.PutUint16(buf[56+4:], length)
			r, err := FromBytes(buf)
			require.NoError(t, err)
			assert.Len(t, r.Blockettes(), 1, "length %d", length)
			assert.Equal(t, []AnomalyKind{MalformedBlocketteChain}, kinds(r.Anomalies()))
		}
	})
}

func TestDecodeChain_UnknownAndOpaque(t *testing.T) {
	opaque := make([]byte, 28)
	binary.BigEndian.PutUint16(opaque[0:], 32) // blockette length
	binary.BigEndian.PutUint16(opaque[2:], 20) // data offset
	binary.BigEndian.PutUint32(opaque[4:], 7)
	opaque[8] = 1
	opaque[10] = 1
	copy(opaque[11:], "ab~c~")
	copy(opaque[16:], "payload")

	bls := []rawBlockette{
		{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
		{777, make([]byte, 12)},
		{TypeOpaque, opaque},
		{888, nil},
	}
	buf := chainRecord(t, testHeader(), bls, 0)
	r, err := FromBytes(buf)
	require.NoError(t, err)
	require.Len(t, r.Blockettes(), 4)
	assert.Empty(t, r.Anomalies())

	unknown, ok := r.Blockettes()[1].(*Unknown)
	require.True(t, ok)
	assert.Equal(t, uint16(777), unknown.Type())
	assert.Len(t, unknown.Bytes(), 16)

	op, ok := r.Blockettes()[2].(*Opaque)
	require.True(t, ok)
	assert.Equal(t, uint16(32), op.Length)
	assert.Equal(t, uint32(7), op.RecordNumber)
	assert.Equal(t, "ab~c~", string(op.HeaderFields()))
	assert.Equal(t, "payload", string(op.Payload()[:7]))

	// the last unknown runs to the end of the record
	tail := r.Blockettes()[3]
	assert.Equal(t, 512-tail.Offset(), len(tail.Bytes()))
}

func TestCompatType_SwappedTimeExtension(t *testing.T) {
	testCases := []struct {
		name    string
		year    uint16
		day     uint16
		want    uint16
		hasTime bool
	}{
		{"inside window", 2006, 150, TypeTimeExtension, true},
		{"last day of window", 2007, 365, TypeTimeExtension, true},
		{"before window", 2005, 365, 0xE903, false},
		{"after window", 2008, 1, 0xE903, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := testHeader()
			h.StartMicros = EpochMicros(BTime{Year: tc.year, Day: tc.day}, 0)
			bls := []rawBlockette{
				{TypeDataExtension, dataExtBody(EncodingSteim2, 9)},
				{0xE903, timeExtBody(80, 0)},
			}
			r, err := FromBytes(chainRecord(t, h, bls, 64))
			require.NoError(t, err)
			require.Len(t, r.Blockettes(), 2)
			assert.Equal(t, tc.want, r.Blockettes()[1].Type())
			assert.Equal(t, tc.hasTime, r.TimeExtension() != nil)
		})
	}
}

func TestBlocketteSize(t *testing.T) {
	assert.Equal(t, 12, BlocketteSize(TypeSampleRate))
	assert.Equal(t, 200, BlocketteSize(TypeTiming))
	assert.Equal(t, 8, BlocketteSize(TypeDataExtension))
	assert.Equal(t, 0, BlocketteSize(TypeOpaque))
	assert.Equal(t, 0, BlocketteSize(4242))
}

func TestBlockette_EncodeRoundTrip(t *testing.T) {
	r, err := FromBytes(chainRecord(t, testHeader(), sevenBlockettes(), 192))
	require.NoError(t, err)

	before := append([]byte(nil), r.Bytes()...)
	for _, b := range r.Blockettes() {
		b.Encode(r.ByteOrder())
		copy(r.buf[b.Offset():], b.Bytes())
	}
	assert.Equal(t, before, r.Bytes())
}

func TestArena_ReloadReusesSlots(t *testing.T) {
	buf := chainRecord(t, testHeader(), sevenBlockettes(), 192)
	r := NewRecord()
	require.NoError(t, r.Load(buf))
	first := r.Blockettes()[3]

	require.NoError(t, r.Load(buf))
	assert.Same(t, first, r.Blockettes()[3])

	allocs := testing.AllocsPerRun(50, func() {
		_ = r.Load(buf)
		r.Crack()
	})
	assert.LessOrEqual(t, allocs, 1.0)
}
