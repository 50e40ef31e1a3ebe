package stats

import (
	"sync"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/config"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Storage is the durable key-value collaborator the tracker persists through.
type Storage interface {
	Load() (map[string]any, error)
	Save(map[string]any) error
}

// Counts is a point-in-time copy of the tracked counters.
type Counts struct {
	RequestsToday int
	InvokesToday  int
	RequestsTotal int
	InvokesTotal  int
	LastReset     string
}

// Tracker counts outbound API calls in two classes: read-only telemetry
// fetches ("requests") and state-changing remote-control calls ("invokes").
// Daily counters reset once per calendar day; all counters survive restarts
// via debounced saves to durable storage. Save failures are logged, never
// raised: losing a counter increment is not worth failing device control.
type Tracker struct {
	storage   Storage
	logger    *logrus.Logger
	now       func() time.Time
	saveDelay time.Duration

	mu            sync.Mutex
	requestsToday int
	invokesToday  int
	requestsTotal int
	invokesTotal  int
	lastReset     string // YYYY-MM-DD
	loaded        bool
	dirty         bool
	saveTimer     *time.Timer
}

// New creates a tracker persisting through storage.
func New(storage Storage, logger *logrus.Logger) *Tracker {
	return &Tracker{
		storage:   storage,
		logger:    logger,
		now:       time.Now,
		saveDelay: config.StatsSaveDelay,
	}
}

// Load reads previously persisted counters. Calling it again after the first
// successful load is a no-op. A storage failure is treated as "no prior
// data"; the tracker never fails startup over stale stats.
func (t *Tracker) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loaded {
		return
	}

	today := t.now().Format(dateLayout)
	t.lastReset = today

	data, err := t.storage.Load()
	if err != nil {
		t.logger.WithError(err).Warn("Failed to load request stats, starting from zero")
	} else if data != nil {
		t.requestsToday = asInt(data["api_requests_today"])
		t.invokesToday = asInt(data["api_invokes_today"])
		t.requestsTotal = asInt(data["api_requests_total"])
		t.invokesTotal = asInt(data["api_invokes_total"])
		if s, ok := data["last_reset"].(string); ok {
			if _, err := time.Parse(dateLayout, s); err == nil {
				t.lastReset = s
			}
		}
	}

	t.loaded = true
	// The process may have been down across a day boundary.
	t.checkResetLocked()
}

// IncRequest records one read-only API call.
func (t *Tracker) IncRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	t.requestsToday++
	t.requestsTotal++
	t.scheduleSaveLocked()
}

// IncInvoke records one state-changing API call.
func (t *Tracker) IncInvoke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	t.invokesToday++
	t.invokesTotal++
	t.scheduleSaveLocked()
}

// ResetToday zeroes the daily counters and persists immediately, not via the
// debounce timer, so a reset cannot be lost on process exit.
func (t *Tracker) ResetToday() {
	t.mu.Lock()
	t.resetTodayLocked()
	t.mu.Unlock()
}

// Save persists the counters if anything changed since the last save.
func (t *Tracker) Save() {
	t.mu.Lock()
	t.saveLocked()
	t.mu.Unlock()
}

// Shutdown forces a final save regardless of the debounce timer.
func (t *Tracker) Shutdown() {
	t.Save()
}

// Counts returns a copy of the current counters.
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{
		RequestsToday: t.requestsToday,
		InvokesToday:  t.invokesToday,
		RequestsTotal: t.requestsTotal,
		InvokesTotal:  t.invokesTotal,
		LastReset:     t.lastReset,
	}
}

func (t *Tracker) checkResetLocked() {
	if today := t.now().Format(dateLayout); today != t.lastReset {
		t.resetTodayLocked()
	}
}

func (t *Tracker) resetTodayLocked() {
	t.requestsToday = 0
	t.invokesToday = 0
	t.lastReset = t.now().Format(dateLayout)
	t.dirty = true
	t.saveLocked()
}

// scheduleSaveLocked marks the state dirty and (re)arms the debounce timer,
// cancelling any previously scheduled save.
func (t *Tracker) scheduleSaveLocked() {
	t.dirty = true
	if t.saveTimer != nil {
		t.saveTimer.Stop()
	}
	t.saveTimer = time.AfterFunc(t.saveDelay, t.Save)
}

func (t *Tracker) saveLocked() {
	if !t.dirty {
		return
	}
	if t.saveTimer != nil {
		t.saveTimer.Stop()
		t.saveTimer = nil
	}
	if err := t.storage.Save(t.asDocLocked()); err != nil {
		t.logger.WithError(err).Warn("Failed to save request stats")
		return
	}
	t.dirty = false
}

func (t *Tracker) asDocLocked() map[string]any {
	return map[string]any{
		"api_requests_today": t.requestsToday,
		"api_invokes_today":  t.invokesToday,
		"api_requests_total": t.requestsTotal,
		"api_invokes_total":  t.invokesTotal,
		"last_reset":         t.lastReset,
	}
}

// asInt copes with JSON round-trips that turn ints into float64.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
