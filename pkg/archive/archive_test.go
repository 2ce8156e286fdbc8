package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

const start int64 = 1_700_000_000_000_000

func testRecord(t testing.TB, name string, us int64, fill byte) *mseed.Record {
	t.Helper()
	payload := make([]byte, mseed.FrameSize)
	for i := range payload {
		payload[i] = fill
	}
	b, err := mseed.BuildRecord(&mseed.Header{
		Sequence:      1,
		Name:          mseed.ParseNSCL(name),
		StartMicros:   us,
		Nsamp:         100,
		Rate:          20,
		Encoding:      mseed.EncodingSteim2,
		RecordLength:  512,
		TimingQuality: 100,
	}, payload)
	require.NoError(t, err)
	r, err := mseed.FromBytes(b)
	require.NoError(t, err)
	return r
}

func setupArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestArchive_PutGet(t *testing.T) {
	a := setupArchive(t)
	r := testRecord(t, "IUANMO BHZ00", start, 1)

	stored, err := a.Put(r)
	require.NoError(t, err)
	assert.True(t, stored)

	got, err := a.Get(r.Name(), start)
	require.NoError(t, err)
	assert.Equal(t, r.Bytes(), got.Bytes())

	_, err = a.Get(r.Name(), start+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_PutSkipsDuplicates(t *testing.T) {
	a := setupArchive(t)
	name := mseed.ParseNSCL("IUANMO BHZ00")

	stored, err := a.Put(testRecord(t, "IUANMO BHZ00", start, 1))
	require.NoError(t, err)
	require.True(t, stored)

	// same data, start inside half a sample
	stored, err = a.Put(testRecord(t, "IUANMO BHZ00", start+10_000, 1))
	require.NoError(t, err)
	assert.False(t, stored)

	// same key, different data replaces the stored record
	stored, err = a.Put(testRecord(t, "IUANMO BHZ00", start, 2))
	require.NoError(t, err)
	assert.True(t, stored)
	got, err := a.Get(name, start)
	require.NoError(t, err)
	assert.Equal(t, byte(2), got.Payload()[0])

	channels, err := a.Channels()
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, 1, channels[0].Records)
}

func TestArchive_RejectsEmptyRecords(t *testing.T) {
	a := setupArchive(t)
	r := testRecord(t, "IUANMO BHZ00", start, 1)
	r.Clear()
	_, err := a.Put(r)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestArchive_ScanAndChannels(t *testing.T) {
	a := setupArchive(t)
	for i := 4; i >= 0; i-- {
		for _, name := range []string{"IUCOLA BHZ00", "IUANMO BHZ00"} {
			_, err := a.Put(testRecord(t, name, start+int64(i)*5_000_000, byte(i+1)))
			require.NoError(t, err)
		}
	}
	// a record before the epoch sorts first
	_, err := a.Put(testRecord(t, "IUANMO BHZ00", -5_000_000, 9))
	require.NoError(t, err)

	var times []int64
	err = a.Scan(mseed.ParseNSCL("IUANMO BHZ00"), start+5_000_000, start+20_000_000, func(r *mseed.Record) error {
		times = append(times, r.TimeMicros())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{start + 5_000_000, start + 10_000_000, start + 15_000_000}, times)

	channels, err := a.Channels()
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "IUANMO BHZ00", channels[0].Name.String())
	assert.Equal(t, 6, channels[0].Records)
	assert.Equal(t, int64(-5_000_000), channels[0].First)
	assert.Equal(t, start+20_000_000, channels[0].Last)
	assert.Equal(t, "IUCOLA BHZ00", channels[1].Name.String())
	assert.Equal(t, 5, channels[1].Records)
}

func TestArchive_ScanStopsOnError(t *testing.T) {
	a := setupArchive(t)
	for i := 0; i < 3; i++ {
		_, err := a.Put(testRecord(t, "IUANMO BHZ00", start+int64(i)*5_000_000, 1))
		require.NoError(t, err)
	}

	calls := 0
	err := a.Scan(mseed.ParseNSCL("IUANMO BHZ00"), 0, start+1_000_000_000, func(*mseed.Record) error {
		calls++
		return ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestArchive_Delete(t *testing.T) {
	a := setupArchive(t)
	name := mseed.ParseNSCL("IUANMO BHZ00")
	for i := 0; i < 4; i++ {
		_, err := a.Put(testRecord(t, "IUANMO BHZ00", start+int64(i)*5_000_000, 1))
		require.NoError(t, err)
	}

	require.NoError(t, a.Delete(name, start+5_000_000, start+15_000_000))

	channels, err := a.Channels()
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, 2, channels[0].Records)
	_, err = a.Get(name, start+5_000_000)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Get(name, start+15_000_000)
	assert.NoError(t, err)
}

func TestArchive_Reopen(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(Config{Dir: dir, Sync: true})
	require.NoError(t, err)
	_, err = a.Put(testRecord(t, "IUANMO BHZ00", start, 1))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = a.Put(testRecord(t, "IUANMO BHZ00", start, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Channels()
	assert.ErrorIs(t, err, ErrClosed)

	b, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer b.Close()
	_, err = b.Get(mseed.ParseNSCL("IUANMO BHZ00"), start)
	assert.NoError(t, err)
}

func TestSessions(t *testing.T) {
	a := setupArchive(t)

	first := NewSession("day1.mseed")
	first.Stored = 10
	first.Duplicates = 2
	first.AddChannel("IUCOLA BHZ00")
	first.AddChannel("IUANMO BHZ00")
	first.AddChannel("IUCOLA BHZ00")
	assert.Equal(t, []string{"IUANMO BHZ00", "IUCOLA BHZ00"}, first.Channels)
	require.NoError(t, a.SaveSession(first))

	second := NewSession("day2.mseed")
	second.Skipped = 1
	require.NoError(t, a.SaveSession(second))

	got, err := a.GetSession(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Source, got.Source)
	assert.Equal(t, 10, got.Stored)
	assert.Equal(t, 2, got.Duplicates)
	assert.Equal(t, first.Channels, got.Channels)
	assert.True(t, first.Started.Equal(got.Started))
	assert.True(t, got.Finished.IsZero())

	all, err := a.Sessions()
	require.NoError(t, err)
	require.Len(t, all, 2)
	ids := map[string]bool{all[0].ID: true, all[1].ID: true}
	assert.True(t, ids[first.ID])
	assert.True(t, ids[second.ID])

	_, err = a.GetSession("not-a-ksuid")
	assert.Error(t, err)
	assert.Error(t, a.SaveSession(&Session{ID: "bad"}))

	// sessions never show up as channels
	channels, err := a.Channels()
	require.NoError(t, err)
	assert.Empty(t, channels)
}
