package pool

import (
	"container/heap"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// freeList is a max-heap of released records ordered by buffer capacity.
type freeList []*mseed.Record

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i].Cap() > f[j].Cap() }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) { *f = append(*f, x.(*mseed.Record)) }

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return r
}

// Pool hands out reusable records. Buffers only grow; Trim is the only way
// to give capacity back. Safe for concurrent use; no operation blocks
// waiting for a record.
type Pool struct {
	config Config
	logger *slog.Logger

	mutex sync.Mutex
	free  freeList
	used  map[*mseed.Record]struct{}
	stats Stats
}

// New creates an empty pool
func New(config Config) *Pool {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pool{
		config: config,
		logger: logger,
		used:   make(map[*mseed.Record]struct{}),
	}
}

// Acquire loads n bytes of buf at off into a pooled record. The largest free
// record is reused when its buffer can hold n bytes; otherwise a new record
// is constructed. A record that fails to load goes back on the free list.
func (p *Pool) Acquire(buf []byte, off, n int) (*mseed.Record, error) {
	p.mutex.Lock()
	var r *mseed.Record
	if len(p.free) > 0 && p.free[0].Cap() >= n {
		r = heap.Pop(&p.free).(*mseed.Record)
	} else {
		r = mseed.NewRecord(p.config.RecordOptions...)
		p.stats.Created++
		p.stats.Live++
	}
	p.used[r] = struct{}{}
	p.mutex.Unlock()

	if err := r.LoadAt(buf, off, n); err != nil {
		p.mutex.Lock()
		delete(p.used, r)
		p.pushFree(r)
		snapshot := p.snapshot()
		p.mutex.Unlock()
		p.report(snapshot)
		return nil, err
	}

	p.mutex.Lock()
	snapshot := p.snapshot()
	p.mutex.Unlock()
	p.report(snapshot)
	return r, nil
}

// Release returns r to the free list. Releasing a record the pool did not
// hand out, or releasing twice, returns ErrNotInUse.
func (p *Pool) Release(r *mseed.Record) error {
	p.mutex.Lock()
	if _, ok := p.used[r]; !ok || r == nil {
		p.stats.Misuse++
		snapshot := p.snapshot()
		p.mutex.Unlock()
		p.logger.Warn("pool release of record not in use", slog.Int("misuse", snapshot.Misuse))
		p.report(snapshot)
		return ErrNotInUse
	}
	delete(p.used, r)
	p.pushFree(r)
	snapshot := p.snapshot()
	p.mutex.Unlock()

	p.report(snapshot)
	return nil
}

// ReleaseAll returns every record in use to the free list.
func (p *Pool) ReleaseAll() {
	p.mutex.Lock()
	for r := range p.used {
		delete(p.used, r)
		p.pushFree(r)
	}
	snapshot := p.snapshot()
	p.mutex.Unlock()

	p.report(snapshot)
}

// Trim drops free records beyond the maxFree largest and returns how many
// were dropped.
func (p *Pool) Trim(maxFree int) int {
	if maxFree < 0 {
		maxFree = 0
	}
	p.mutex.Lock()
	if len(p.free) <= maxFree {
		p.mutex.Unlock()
		return 0
	}
	sort.Slice(p.free, func(i, j int) bool { return p.free[i].Cap() > p.free[j].Cap() })
	dropped := len(p.free) - maxFree
	clear(p.free[maxFree:])
	p.free = p.free[:maxFree]
	heap.Init(&p.free)
	p.stats.Live -= dropped
	snapshot := p.snapshot()
	p.mutex.Unlock()

	p.logger.Debug("pool trimmed", slog.Int("dropped", dropped), slog.Int("free", snapshot.Free))
	p.report(snapshot)
	return dropped
}

// Stats returns a snapshot of the pool
func (p *Pool) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.snapshot()
}

func (p *Pool) pushFree(r *mseed.Record) {
	heap.Push(&p.free, r)
	if len(p.free) > p.stats.HighWater {
		p.stats.HighWater = len(p.free)
	}
}

// snapshot must be called with the mutex held.
func (p *Pool) snapshot() Stats {
	s := p.stats
	s.Free = len(p.free)
	s.Used = len(p.used)
	return s
}

func (p *Pool) report(s Stats) {
	if p.config.Reporter != nil {
		p.config.Reporter.ReportPool(s)
	}
}
