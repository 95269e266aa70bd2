package main

import (
	"math/rand/v2"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pavanmanishd/bump"
	"github.com/pavanmanishd/bump/tracker"
)

// Config describes a synthetic allocation workload.
type Config struct {
	Seed   uint64        `yaml:"seed"`
	Arenas []ArenaConfig `yaml:"arenas"`
	Phases []PhaseConfig `yaml:"phases"`
}

// ArenaConfig describes one arena of the workload.
type ArenaConfig struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Bucket   bool   `yaml:"bucket"`
	MaxBytes int    `yaml:"max_bytes"`
}

// PhaseConfig is a batch of allocations against one arena.
type PhaseConfig struct {
	Arena   string `yaml:"arena"`
	Repeat  int    `yaml:"repeat"`
	Allocs  int    `yaml:"allocs"`
	MinSize int    `yaml:"min_size"`
	MaxSize int    `yaml:"max_size"`
	Align   int    `yaml:"align"`
	// FreeEvery deallocates every n-th allocation right after making it.
	FreeEvery int `yaml:"free_every"`
	// Rollback runs every repetition inside a guard.
	Rollback bool `yaml:"rollback"`
}

// LoadConfig reads and validates a workload file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read workload")
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a workload.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode workload")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the workload and fills in defaults.
func (c *Config) Validate() error {
	if len(c.Arenas) == 0 {
		return errors.New("workload has no arenas")
	}
	names := map[string]bool{}
	for _, a := range c.Arenas {
		if a.Name == "" {
			return errors.New("arena without a name")
		}
		if names[a.Name] {
			return errors.Errorf("arena %q defined twice", a.Name)
		}
		names[a.Name] = true
	}
	for i := range c.Phases {
		p := &c.Phases[i]
		if !names[p.Arena] {
			return errors.Errorf("phase %d: unknown arena %q", i, p.Arena)
		}
		if p.Repeat <= 0 {
			p.Repeat = 1
		}
		if p.Align == 0 {
			p.Align = 8
		}
		if p.MinSize < 0 || p.MaxSize < p.MinSize {
			return errors.Errorf("phase %d: bad size range [%d, %d]", i, p.MinSize, p.MaxSize)
		}
		if p.Allocs < 0 {
			return errors.Errorf("phase %d: negative allocation count", i)
		}
	}
	return nil
}

// ArenaResult summarises one arena after a workload.
type ArenaResult struct {
	Name        string
	Allocations int
	Requested   uint64
	Failures    int
	Metrics     bump.ArenaMetrics
	FreeBytes   int
}

// workload holds the live arenas of a running Config.
type workload struct {
	cfg     *Config
	logger  log.Logger
	rng     *rand.Rand
	arenas  map[string]*bump.Arena
	buckets map[string]*bump.Bucket
	results map[string]*ArenaResult
}

func newWorkload(cfg *Config, t *tracker.Tracker, logger log.Logger) *workload {
	w := &workload{
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		arenas:  map[string]*bump.Arena{},
		buckets: map[string]*bump.Bucket{},
		results: map[string]*ArenaResult{},
	}
	for _, ac := range cfg.Arenas {
		opts := []bump.Option{bump.WithLogger(log.With(logger, "arena", ac.Name))}
		if ac.MaxBytes > 0 {
			opts = append(opts, bump.WithSource(bump.NewLimitSource(ac.MaxBytes, nil)))
		}
		a := bump.New(ac.Capacity, opts...)
		w.arenas[ac.Name] = a
		if ac.Bucket {
			w.buckets[ac.Name] = bump.NewBucket(a)
		}
		w.results[ac.Name] = &ArenaResult{Name: ac.Name}
		if t != nil {
			t.Register(a, ac.Name)
		}
	}
	return w
}

// scope returns the allocator phases of the named arena go through.
func (w *workload) scope(name string) bump.Scope {
	if b, ok := w.buckets[name]; ok {
		return b
	}
	return w.arenas[name]
}

func (w *workload) run() error {
	for i, p := range w.cfg.Phases {
		level.Debug(w.logger).Log("msg", "phase", "index", i, "arena", p.Arena, "repeat", p.Repeat, "allocs", p.Allocs)
		for r := 0; r < p.Repeat; r++ {
			if err := w.runPhase(p); err != nil {
				return errors.Wrapf(err, "phase %d repetition %d", i, r)
			}
		}
	}
	return nil
}

func (w *workload) runPhase(p PhaseConfig) error {
	s := w.scope(p.Arena)
	if !p.Rollback {
		return w.allocate(s, p)
	}
	// Allocations go straight to s; the guard only bounds their lifetime.
	return bump.Scoped(s, func(*bump.Guard) error {
		return w.allocate(s, p)
	})
}

func (w *workload) allocate(s bump.Allocator, p PhaseConfig) error {
	res := w.results[p.Arena]
	for i := 0; i < p.Allocs; i++ {
		size := p.MinSize
		if p.MaxSize > p.MinSize {
			size += w.rng.IntN(p.MaxSize - p.MinSize + 1)
		}
		buf, err := s.Allocate(size, p.Align)
		if errors.Is(err, bump.ErrOutOfMemory) {
			res.Failures++
			continue
		}
		if err != nil {
			return err
		}
		res.Allocations++
		res.Requested += uint64(size)
		if p.FreeEvery > 0 && i%p.FreeEvery == 0 {
			if err := s.Deallocate(buf, size, p.Align); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *workload) summary() []ArenaResult {
	out := make([]ArenaResult, 0, len(w.cfg.Arenas))
	for _, ac := range w.cfg.Arenas {
		res := *w.results[ac.Name]
		res.Metrics = w.arenas[ac.Name].Metrics()
		if b, ok := w.buckets[ac.Name]; ok {
			res.FreeBytes = b.FreeBytes()
		}
		out = append(out, res)
	}
	return out
}

// release hands every arena's grown blocks back to its source.
func (w *workload) release() {
	for name, a := range w.arenas {
		if b, ok := w.buckets[name]; ok {
			b.Release()
			continue
		}
		a.Release()
	}
}

// Execute runs cfg and returns a summary per arena, in configuration order.
// Arenas are registered with t, if non-nil, for the duration of the run.
func Execute(cfg *Config, t *tracker.Tracker, logger log.Logger) ([]ArenaResult, error) {
	w := newWorkload(cfg, t, logger)
	defer func() {
		if t != nil {
			for _, a := range w.arenas {
				t.Unregister(a)
			}
		}
	}()
	if err := w.run(); err != nil {
		return nil, err
	}
	res := w.summary()
	w.release()
	if t != nil {
		t.Report()
	}
	return res, nil
}
