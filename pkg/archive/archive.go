package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

const (
	recordPrefix  = 'r'
	sessionPrefix = 's'
	recordKeySize = 1 + mseed.NameLength + 8
)

// Config holds configuration for an archive
type Config struct {
	Dir           string         // Directory holding the pebble database
	Sync          bool           // Fsync every write
	RecordOptions []mseed.Option // Options for records read back from the archive
	Logger        *slog.Logger
}

// Errors
var (
	ErrNotFound = &ArchiveError{"record not found"}
	ErrClosed   = &ArchiveError{"archive is closed"}
	ErrNoData   = &ArchiveError{"heartbeat and cleared records are not archived"}
)

// ArchiveError represents an archive error
type ArchiveError struct {
	Message string
}

func (e *ArchiveError) Error() string {
	return e.Message
}

// Archive stores raw MiniSEED records in pebble keyed by channel and start
// time.
type Archive struct {
	config Config
	logger *slog.Logger
	db     *pebble.DB
	mutex  sync.RWMutex
	isOpen bool
}

// Open opens or creates the archive in config.Dir
func Open(config Config) (*Archive, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	db, err := pebble.Open(config.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", config.Dir, err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Archive{config: config, logger: logger, db: db, isOpen: true}, nil
}

func (a *Archive) writeOpts() *pebble.WriteOptions {
	if a.config.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// orderedMicros maps signed microseconds onto an unsigned key that sorts in
// time order.
func orderedMicros(us int64) uint64 {
	return uint64(us) ^ 1<<63
}

func recordKey(name mseed.NSCL, us int64) []byte {
	k := make([]byte, recordKeySize)
	k[0] = recordPrefix
	copy(k[1:], name[:])
	binary.BigEndian.PutUint64(k[1+mseed.NameLength:], orderedMicros(us))
	return k
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (a *Archive) check() error {
	if !a.isOpen {
		return ErrClosed
	}
	return nil
}

// Put stores r unless the archive already holds a duplicate of it. It
// reports whether the record was written. A non-duplicate record with the
// same channel and start time replaces the stored one.
func (a *Archive) Put(r *mseed.Record) (bool, error) {
	if r.Heartbeat() || r.Cleared() {
		return false, ErrNoData
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.check(); err != nil {
		return false, err
	}

	name, start := r.Name(), r.TimeMicros()
	tolerance := int64(0)
	if rate := r.Rate(); rate > 0 {
		tolerance = int64(500_000 / rate)
	}
	dup := false
	err := a.scan(name, start-tolerance, start+tolerance+1, func(stored *mseed.Record) error {
		if stored.IsDuplicate(r) {
			dup = true
			return errStop
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if dup {
		a.logger.Debug("archive skipped duplicate", slog.String("nscl", name.String()), slog.Int64("start", start))
		return false, nil
	}

	if err := a.db.Set(recordKey(name, start), r.Bytes(), a.writeOpts()); err != nil {
		return false, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return true, nil
}

// Get returns the record of a channel starting at the given time.
func (a *Archive) Get(name mseed.NSCL, startMicros int64) (*mseed.Record, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if err := a.check(); err != nil {
		return nil, err
	}

	data, closer, err := a.db.Get(recordKey(name, startMicros))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	return mseed.FromBytes(data, a.config.RecordOptions...)
}

var errStop = errors.New("stop scan")

// Scan calls fn for each record of a channel starting in [from, to), in time
// order. The record passed to fn is reused between calls; Clone it to keep
// it.
func (a *Archive) Scan(name mseed.NSCL, from, to int64, fn func(*mseed.Record) error) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if err := a.check(); err != nil {
		return err
	}
	return a.scan(name, from, to, fn)
}

func (a *Archive) scan(name mseed.NSCL, from, to int64, fn func(*mseed.Record) error) error {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(name, from),
		UpperBound: recordKey(name, to),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	rec := mseed.NewRecord(a.config.RecordOptions...)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := rec.Load(iter.Value()); err != nil {
			a.logger.Warn("archive holds unreadable record", slog.String("key", fmt.Sprintf("%x", iter.Key())), slog.Any("error", err))
			continue
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// ChannelSummary describes the records archived for one channel
type ChannelSummary struct {
	Name    mseed.NSCL
	Records int
	First   int64 // start of the earliest record, epoch microseconds
	Last    int64 // start of the latest record, epoch microseconds
}

// Channels summarizes every archived channel in NSCL order.
func (a *Archive) Channels() ([]ChannelSummary, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if err := a.check(); err != nil {
		return nil, err
	}

	lower := []byte{recordPrefix}
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(lower),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ChannelSummary
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		if len(k) != recordKeySize {
			continue
		}
		var name mseed.NSCL
		copy(name[:], k[1:1+mseed.NameLength])
		us := int64(binary.BigEndian.Uint64(k[1+mseed.NameLength:]) ^ 1<<63)
		if n := len(out); n == 0 || out[n-1].Name != name {
			out = append(out, ChannelSummary{Name: name, First: us})
		}
		cur := &out[len(out)-1]
		cur.Records++
		cur.Last = us
	}
	return out, iter.Error()
}

// Delete removes every record of a channel starting in [from, to).
func (a *Archive) Delete(name mseed.NSCL, from, to int64) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.check(); err != nil {
		return err
	}
	return a.db.DeleteRange(recordKey(name, from), recordKey(name, to), a.writeOpts())
}

// Close flushes and closes the archive
func (a *Archive) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.isOpen {
		return nil
	}
	a.isOpen = false
	return a.db.Close()
}
