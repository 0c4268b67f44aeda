package memory

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"archive-indexer/internal/logging"
	"archive-indexer/internal/metrics"
)

// Config holds the backpressure thresholds.
type Config struct {
	// LimitBytes is the soft memory limit. Zero falls back to
	// GOMEMLIMIT; with neither set, backpressure is disabled.
	LimitBytes int64

	// HighWater is the fraction of the limit at which batch pauses
	// are stretched.
	HighWater float64

	// CriticalWater is the fraction at which scanning pauses entirely
	// until usage drops back below HighWater.
	CriticalWater float64

	// CheckInterval is how often usage is sampled.
	CheckInterval time.Duration
}

// FromEnv builds a Config from MEMORY_LIMIT_MB and defaults.
func FromEnv() Config {
	config := Config{
		HighWater:     0.7,
		CriticalWater: 0.85,
		CheckInterval: 5 * time.Second,
	}
	if raw := os.Getenv("MEMORY_LIMIT_MB"); raw != "" {
		if mb, err := strconv.ParseInt(raw, 10, 64); err == nil && mb > 0 {
			config.LimitBytes = mb * 1024 * 1024
		}
	}
	return config
}

// Monitor samples heap usage and signals the scanner to slow down or
// pause when allocation approaches the limit.
type Monitor struct {
	config   Config
	limit    int64
	stopChan chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	current    uint64
	isPaused   bool
	resumeChan chan struct{}
}

// NewMonitor creates a Monitor. With no explicit limit, GOMEMLIMIT is
// used when set; otherwise the monitor is inert.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %.1f MB", float64(limit)/(1024*1024))
		}
	}
	if limit == 0 {
		logging.Debug("No memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:     config,
		limit:      limit,
		stopChan:   make(chan struct{}),
		resumeChan: make(chan struct{}),
	}
}

// Start begins sampling. A no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop terminates sampling and releases any paused waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = stats.Alloc
	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWater && !m.isPaused:
		logging.Warn("Memory at %.1f%% of limit, pausing scan work", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWater && m.isPaused:
		logging.Info("Memory recovered to %.1f%% of limit, resuming", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumeChan)
		m.resumeChan = make(chan struct{})
	}
}

// WaitIfPaused blocks while usage is critical. Returns false when the
// monitor was stopped instead of resumed.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	resume := m.resumeChan
	m.mu.RUnlock()

	select {
	case <-resume:
		return true
	case <-m.stopChan:
		return false
	}
}

// ShouldThrottle reports whether usage is above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	if m.limit == 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) >= float64(m.limit)*m.config.HighWater
}

// Usage returns heap allocation as a fraction of the limit, or zero
// when no limit is configured.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
