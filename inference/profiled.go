package inference

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Stats summarizes the Invoke calls seen by a Profiled engine.
type Stats struct {
	Invocations int64
	Failures    int64
	Total       time.Duration
	Last        time.Duration
}

// Average returns the mean Invoke latency.
func (s Stats) Average() time.Duration {
	if s.Invocations == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Invocations)
}

// Throughput returns invocations per second of inference time.
func (s Stats) Throughput() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Invocations) / s.Total.Seconds()
}

// MarshalLogObject lets Stats be logged with zap.Object.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("invocations", s.Invocations)
	enc.AddInt64("failures", s.Failures)
	enc.AddDuration("total", s.Total)
	enc.AddDuration("average", s.Average())
	enc.AddDuration("last", s.Last)
	enc.AddFloat64("throughput_fps", s.Throughput())
	return nil
}

// Profiled wraps an Engine and times every Invoke.
type Profiled struct {
	Engine

	mu    sync.RWMutex
	stats Stats
	now   func() time.Time
}

// NewProfiled wraps engine.
//
// Arguments:
//   - engine: The engine to time.
//
// Returns:
//   - *Profiled: The wrapper, itself an Engine.
func NewProfiled(engine Engine) *Profiled {
	return &Profiled{Engine: engine, now: time.Now}
}

// Invoke runs the wrapped engine and records its latency.
func (p *Profiled) Invoke(in Input) error {
	start := p.now()
	err := p.Engine.Invoke(in)
	elapsed := p.now().Sub(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Invocations++
	p.stats.Total += elapsed
	p.stats.Last = elapsed
	if err != nil {
		p.stats.Failures++
	}

	return err
}

// Stats returns a snapshot of the counters.
func (p *Profiled) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Reset clears all counters.
func (p *Profiled) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = Stats{}
}
