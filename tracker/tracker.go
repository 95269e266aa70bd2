// Package tracker reports the memory arenas hold from their backing source.
//
// Arenas register under a name; Report snapshots every registered arena and
// logs the per-arena and total figures when they changed since the previous
// report. Snapshots are taken from counters the arenas only update when they
// grow or release blocks, so tracking costs nothing on the allocation path.
package tracker

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/pavanmanishd/bump"
)

// ErrRunning is returned by Run when the tracker is already running.
var ErrRunning = errors.New("tracker: already running")

// Source is anything that exposes arena source counters, such as *bump.Arena
// and *bump.Bucket.
type Source interface {
	Stats() bump.Snapshot
}

// Entry is the state of one registered source at report time.
type Entry struct {
	ID       string
	Name     string
	Reserved uint64
	Freed    uint64
}

// Tracker is a registry of named arenas. It is safe for concurrent use; the
// arenas themselves are only read through their Stats counters.
type Tracker struct {
	logger log.Logger

	mu      sync.Mutex
	sources map[Source]string

	reportMu sync.Mutex
	previous []Entry

	running atomic.Bool

	reservedDesc *prometheus.Desc
	freedDesc    *prometheus.Desc
}

// New creates an empty Tracker that reports to logger.
func New(logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Tracker{
		logger:  logger,
		sources: map[Source]string{},
		reservedDesc: prometheus.NewDesc(
			"bump_arena_reserved_bytes",
			"Total bytes the arena obtained from its backing source.",
			[]string{"arena"},
			nil,
		),
		freedDesc: prometheus.NewDesc(
			"bump_arena_freed_bytes",
			"Total bytes the arena returned to its backing source.",
			[]string{"arena"},
			nil,
		),
	}
}

// Register adds s under name. An empty name keeps s out of the per-arena lines
// but still counts it in the total. Registering s again renames it.
func (t *Tracker) Register(s Source, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[s] = name
}

// Rename changes the name of a registered source. It reports false if s is not
// registered.
func (t *Tracker) Rename(s Source, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sources[s]; !ok {
		return false
	}
	t.sources[s] = name
	return true
}

// Unregister removes s.
func (t *Tracker) Unregister(s Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sources, s)
}

// Len returns the number of registered sources.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sources)
}

// Snapshot returns the current state of every registered source, ordered by
// name then identity.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.sources))
	for s, name := range t.sources {
		st := s.Stats()
		entries = append(entries, Entry{
			ID:       fmt.Sprintf("%p", s),
			Name:     name,
			Reserved: st.Reserved,
			Freed:    st.Freed,
		})
	}
	t.mu.Unlock()

	slices.SortFunc(entries, func(x, y Entry) int {
		return cmp.Or(strings.Compare(x.Name, y.Name), strings.Compare(x.ID, y.ID))
	})
	return entries
}

// Report logs the state of every named source and the total over all sources,
// if anything changed since the last report. It reports whether it logged.
func (t *Tracker) Report() bool {
	current := t.Snapshot()

	t.reportMu.Lock()
	defer t.reportMu.Unlock()
	if t.previous != nil && gocmp.Equal(t.previous, current) {
		return false
	}
	level.Debug(t.logger).Log("msg", "arena stats changed", "diff", gocmp.Diff(t.previous, current))

	var total bump.Snapshot
	for _, e := range current {
		total.Reserved += e.Reserved
		total.Freed += e.Freed
		if e.Name == "" {
			continue
		}
		level.Info(t.logger).Log(
			"msg", "arena",
			"name", e.Name,
			"id", e.ID,
			"reserved", humanize.IBytes(e.Reserved),
			"freed", humanize.IBytes(e.Freed),
			"live", humanize.IBytes(e.Reserved-e.Freed),
		)
	}
	level.Info(t.logger).Log(
		"msg", "arena total",
		"arenas", len(current),
		"reserved", humanize.IBytes(total.Reserved),
		"freed", humanize.IBytes(total.Freed),
		"live", humanize.IBytes(total.Live()),
	)
	t.previous = current
	return true
}

// Run calls Report every interval until ctx is done, then returns ctx.Err().
// Only one Run may be active at a time.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer t.running.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		t.Report()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Describe implements prometheus.Collector.
func (t *Tracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.reservedDesc
	ch <- t.freedDesc
}

// Collect implements prometheus.Collector. Sources sharing a name are summed;
// unnamed sources are skipped.
func (t *Tracker) Collect(ch chan<- prometheus.Metric) {
	byName := map[string]bump.Snapshot{}
	for _, e := range t.Snapshot() {
		if e.Name == "" {
			continue
		}
		s := byName[e.Name]
		s.Reserved += e.Reserved
		s.Freed += e.Freed
		byName[e.Name] = s
	}
	for name, s := range byName {
		ch <- prometheus.MustNewConstMetric(t.reservedDesc, prometheus.CounterValue, float64(s.Reserved), name)
		ch <- prometheus.MustNewConstMetric(t.freedDesc, prometheus.CounterValue, float64(s.Freed), name)
	}
}
