package di

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/mseedkit/pkg/config"
	"github.com/ssargent/mseedkit/pkg/mseed"
)

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultConfig(), c.GetConfig())
	assert.NotNil(t, c.GetLogger())
	assert.NotNil(t, c.GetRegistry())
	assert.NotNil(t, c.GetMetrics())
	assert.NotNil(t, c.GetCodec())

	bad := config.DefaultConfig()
	bad.Logging.Level = "loud"
	_, err = NewContainer(bad, nil)
	assert.Error(t, err)
}

func TestContainer_Wiring(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Engine.MaxYear = 2000
	cfg.Resegment.Encoding = "steim1"
	cfg.Resegment.TargetSize = 1024
	cfg.Dedup.Window = 2
	c, err := NewContainer(cfg, &logs)
	require.NoError(t, err)

	buf, err := mseed.BuildRecord(&mseed.Header{
		Name:          mseed.ParseNSCL("IUANMO BHZ00"),
		StartMicros:   1_700_000_000_000_000,
		Rate:          20,
		Encoding:      mseed.EncodingSteim2,
		RecordLength:  512,
		TimingQuality: -1,
	}, nil)
	require.NoError(t, err)

	p := c.NewPool()
	r, err := p.Acquire(buf, 0, len(buf))
	require.NoError(t, err)
	assert.Len(t, r.Anomalies(), 1, "pooled records use the configured year range")
	assert.Contains(t, logs.String(), "implausible_time")

	families, err := c.GetRegistry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "mseed_anomalies_total")
	assert.Contains(t, names, "mseed_pool_records")

	opts := c.ResegmentOptions(p)
	assert.Equal(t, 1024, opts.TargetSize)
	assert.Equal(t, mseed.EncodingSteim1, opts.Encoding)
	assert.Same(t, p, opts.Alloc)
	assert.NotNil(t, opts.Decoder)
	assert.NotNil(t, opts.Compressor)
	opts.OnComplete(mseed.PathCopy, 1)

	idx := c.NewDedupIndex()
	assert.False(t, idx.Seen(r))
	assert.True(t, idx.Seen(r))
}

func TestContainer_OpenArchive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Archive.Dir = filepath.Join(t.TempDir(), "configured")
	c, err := NewContainer(cfg, &bytes.Buffer{})
	require.NoError(t, err)

	a, err := c.OpenArchive("")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.DirExists(t, cfg.Archive.Dir)

	other := filepath.Join(t.TempDir(), "override")
	a, err = c.OpenArchive(other)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.DirExists(t, other)
}
