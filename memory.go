package main

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const samplingInterval = 10 * time.Millisecond

// rssBytesFunc is swapped out by tests.
var rssBytesFunc = rssBytes

// resourceUsage is what a measured call cost: wall time and the peak
// resident set size observed while it ran.
type resourceUsage struct {
	Seconds float64
	PeakRSS float64
}

// rssSampler polls rssBytesFunc in the background and keeps the highest
// reading.
type rssSampler struct {
	mu   sync.Mutex
	peak float64
	done chan struct{}
	wg   sync.WaitGroup
}

func startRSSSampler(interval time.Duration) *rssSampler {
	s := &rssSampler{done: make(chan struct{})}
	s.observe(rssBytesFunc())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.observe(rssBytesFunc())
			}
		}
	}()
	return s
}

func (s *rssSampler) observe(v float64) {
	s.mu.Lock()
	if v > s.peak {
		s.peak = v
	}
	s.mu.Unlock()
}

// stop ends sampling and returns the peak seen.
func (s *rssSampler) stop() float64 {
	close(s.done)
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// measurePeakResidentMemory runs fn under an rssSampler.
func measurePeakResidentMemory(fn func() error) (resourceUsage, error) {
	sampler := startRSSSampler(samplingInterval)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Seconds()
	return resourceUsage{Seconds: elapsed, PeakRSS: sampler.stop()}, err
}

// rssBytes reads the resident set size of this process, 0 when it cannot
// be read.
func rssBytes() float64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	m, err := p.MemoryInfo()
	if err != nil || m == nil {
		return 0
	}
	return float64(m.RSS)
}
