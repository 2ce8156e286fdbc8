package mseed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// 2023-11-14T22:13:20.123456Z
const testStart int64 = 1_700_000_000_123_456

func testHeader() *Header {
	return &Header{
		Sequence:      1,
		Indicator:     'D',
		Name:          ParseNSCL("IUANMO BHZ00"),
		StartMicros:   testStart,
		Nsamp:         100,
		Rate:          20,
		Encoding:      EncodingSteim2,
		RecordLength:  512,
		TimingQuality: 100,
	}
}

// testPayload returns frames of deterministic non-zero bytes.
func testPayload(frames int) []byte {
	p := make([]byte, frames*FrameSize)
	for i := range p {
		p[i] = byte(i%251 + 1)
	}
	return p
}

func buildTestRecord(t testing.TB, h *Header, payload []byte) []byte {
	t.Helper()
	b, err := BuildRecord(h, payload)
	require.NoError(t, err)
	return b
}

// collect returns an observer appending to the returned slice.
func collect() (*[]Anomaly, Observer) {
	var seen []Anomaly
	return &seen, ObserverFunc(func(a Anomaly) { seen = append(seen, a) })
}

func kinds(as []Anomaly) []AnomalyKind {
	out := make([]AnomalyKind, 0, len(as))
	for _, a := range as {
		out = append(out, a.Kind)
	}
	return out
}

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}
