package dedup

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// DefaultWindow is the number of recent records remembered per channel.
const DefaultWindow = 64

// Config holds configuration for the duplicate index
type Config struct {
	Window int // Entries kept per channel, DefaultWindow when 0
}

// Entry is the fingerprint of one record
type Entry struct {
	StartMicros int64
	Nsamp       int
	Length      int
	Rate        float64
	Sum         uint64 // xxhash of the bytes after the 64 byte header
}

// EntryOf fingerprints r.
func EntryOf(r *mseed.Record) Entry {
	b := r.Bytes()
	var sum uint64
	if len(b) > mseed.HeaderSize {
		sum = xxhash.Sum64(b[mseed.HeaderSize:])
	}
	return Entry{
		StartMicros: r.TimeMicros(),
		Nsamp:       r.Nsamp(),
		Length:      len(b),
		Rate:        r.Rate(),
		Sum:         sum,
	}
}

// Matches applies the record duplicate rule to two fingerprints: start times
// within half a sample, same sample count, length and payload.
func (e Entry) Matches(o Entry) bool {
	if e.Nsamp != o.Nsamp || e.Length != o.Length || e.Sum != o.Sum {
		return false
	}
	diff := e.StartMicros - o.StartMicros
	if diff < 0 {
		diff = -diff
	}
	if e.Rate > 0 {
		return float64(diff) < 500_000/e.Rate
	}
	return diff == 0
}

// Index remembers recent records per channel to drop repeats from a stream
type Index struct {
	window  int
	entries map[mseed.NSCL][]Entry
	mutex   sync.RWMutex
}

// NewIndex creates a new duplicate index
func NewIndex(config Config) *Index {
	window := config.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Index{
		window:  window,
		entries: make(map[mseed.NSCL][]Entry),
	}
}

// Contains reports whether a duplicate of r has been seen
func (idx *Index) Contains(r *mseed.Record) bool {
	e := EntryOf(r)
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return idx.contains(r.Name(), e)
}

// Seen records r and reports whether it duplicates an earlier record.
// Duplicates are not added.
func (idx *Index) Seen(r *mseed.Record) bool {
	if r.Heartbeat() || r.Cleared() {
		return false
	}
	name := r.Name()
	e := EntryOf(r)
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if idx.contains(name, e) {
		return true
	}
	list := append(idx.entries[name], e)
	if len(list) > idx.window {
		list = append(list[:0], list[len(list)-idx.window:]...)
	}
	idx.entries[name] = list
	return false
}

func (idx *Index) contains(name mseed.NSCL, e Entry) bool {
	for _, prev := range idx.entries[name] {
		if prev.Matches(e) {
			return true
		}
	}
	return false
}

// Size returns the number of channels in the index
func (idx *Index) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.entries)
}

// Clear removes all entries from the index
func (idx *Index) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[mseed.NSCL][]Entry)
}
