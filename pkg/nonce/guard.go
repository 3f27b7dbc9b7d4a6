// Package nonce implements the replay guard: a (principal, nonce) pair is
// accepted at most once for the lifetime of the guard's retention window,
// with a strict TTL in the past direction and a bounded clock-skew allowance
// in the future direction.
package nonce

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/pkg/clock"
)

const (
	// DefaultTTL is the default nonce validity duration.
	DefaultTTL = 5 * time.Minute

	// DefaultTimestampTolerance is the default allowed clock drift for
	// future-dated request timestamps.
	DefaultTimestampTolerance = 5 * time.Minute

	// DefaultMaxSize bounds the retained record set.
	DefaultMaxSize = 10000

	// MinNonceLength is the minimum accepted nonce length.
	MinNonceLength = 8
)

// Config holds guard parameters. Zero fields fall back to the package
// defaults; StrictOrder additionally requires numeric nonces to be strictly
// increasing per principal.
type Config struct {
	TTL                time.Duration
	MaxSize            int
	TimestampTolerance time.Duration
	StrictOrder        bool
}

type recordKey struct {
	principal string
	nonce     string
}

// record retains an accepted nonce until its absolute expiry. Never mutated
// after creation.
type record struct {
	createdAt time.Time
	expiresAt time.Time
}

// Guard tracks accepted nonces and rejects replays. Construct with NewGuard;
// the constructor starts a background sweeper that must be released with
// Shutdown.
type Guard struct {
	cfg    Config
	clk    clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	records map[recordKey]record
	cursors map[string]uint64

	processed  uint64
	acceptedN  uint64
	rejections map[ReasonCode]uint64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGuard creates a replay guard and starts its background sweeper at half
// the TTL cadence. A nil clock falls back to the system clock; a nil logger
// to a no-op logger.
func NewGuard(cfg Config, clk clock.Clock, logger *zap.Logger) *Guard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TimestampTolerance <= 0 {
		cfg.TimestampTolerance = DefaultTimestampTolerance
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Guard{
		cfg:        cfg,
		clk:        clk,
		logger:     logger,
		records:    make(map[recordKey]record),
		cursors:    make(map[string]uint64),
		rejections: make(map[ReasonCode]uint64),
		done:       make(chan struct{}),
	}

	g.wg.Add(1)
	go g.sweepLoop()

	return g
}

// Validate accepts or rejects a (nonce, principal, timestamp) triple. The
// checks run in a fixed order, short-circuiting on the first failure:
// format, expiry, future-dating, already-used, then strict ordering when
// enabled. Timestamp is unix milliseconds.
func (g *Guard) Validate(nonce, principal string, timestamp int64) Result {
	now := g.clk.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.processed++

	if res, ok := g.checkFormatLocked(nonce, principal); !ok {
		return res
	}

	ts := time.UnixMilli(timestamp)
	if now.Sub(ts) > g.cfg.TTL {
		return g.rejectLocked(CodeExpired,
			fmt.Sprintf("timestamp older than %s", g.cfg.TTL))
	}
	if ts.Sub(now) > g.cfg.TimestampTolerance {
		return g.rejectLocked(CodeFutureTimestamp,
			fmt.Sprintf("timestamp more than %s in the future", g.cfg.TimestampTolerance))
	}

	key := recordKey{principal: principal, nonce: nonce}
	if _, used := g.records[key]; used {
		g.logger.Warn("nonce replay rejected",
			zap.String("principal", principal),
			zap.String("nonce", nonce),
		)
		return g.rejectLocked(CodeAlreadyUsed, "nonce already used for this principal")
	}

	// Ordering is undefined for non-numeric nonces, so they bypass the
	// strict-order check rather than fail it.
	numeric, isNumeric := parseNumeric(nonce)
	if g.cfg.StrictOrder && isNumeric {
		if last, ok := g.cursors[principal]; ok && numeric <= last {
			return g.rejectLocked(CodeOutOfOrder,
				fmt.Sprintf("nonce %d not greater than last accepted %d", numeric, last))
		}
	}

	g.records[key] = record{
		createdAt: now,
		expiresAt: now.Add(g.cfg.TTL),
	}
	if g.cfg.StrictOrder && isNumeric {
		g.cursors[principal] = numeric
	}
	g.acceptedN++

	if len(g.records) >= g.cfg.MaxSize {
		g.sweepLocked(now)
	}

	g.logger.Debug("nonce accepted",
		zap.String("principal", principal),
		zap.String("nonce", nonce),
	)
	return accepted()
}

// ValidateString is Validate for callers whose timestamp arrives as text.
// The format checks still run first; a timestamp that does not parse to a
// number rejects with INVALID_TIMESTAMP before any window check runs.
func (g *Guard) ValidateString(nonce, principal, timestamp string) Result {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.processed++
		if res, ok := g.checkFormatLocked(nonce, principal); !ok {
			return res
		}
		return g.rejectLocked(CodeInvalidTimestamp, "timestamp is not numeric")
	}
	return g.Validate(nonce, principal, ts)
}

// Stats returns a snapshot of the running validation counters.
func (g *Guard) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	rej := make(map[ReasonCode]uint64, len(g.rejections))
	for code, n := range g.rejections {
		rej[code] = n
	}
	s := Stats{
		Processed:  g.processed,
		Accepted:   g.acceptedN,
		Rejections: rej,
		Retained:   len(g.records),
	}
	if g.processed > 0 {
		s.AcceptanceRate = 100 * float64(g.acceptedN) / float64(g.processed)
	}
	return s
}

// ResetStats zeroes the counters without touching retained records or the
// sweep lifecycle.
func (g *Guard) ResetStats() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.processed = 0
	g.acceptedN = 0
	g.rejections = make(map[ReasonCode]uint64)
}

// Reset discards every retained record and principal cursor.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.records = make(map[recordKey]record)
	g.cursors = make(map[string]uint64)
}

// Shutdown cancels the background sweeper and releases all retained state.
// Safe to call while validations are in flight and safe to call more than
// once; no new sweep starts after it returns.
func (g *Guard) Shutdown() {
	g.stopOnce.Do(func() {
		close(g.done)
	})
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[recordKey]record)
	g.cursors = make(map[string]uint64)
}

// Sweep removes expired records now, then trims the retained set back to
// MaxSize keeping the newest-expiring records. Returns the number removed.
func (g *Guard) Sweep() int {
	now := g.clk.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(now)
}

func (g *Guard) sweepLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.TTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			if removed := g.Sweep(); removed > 0 {
				g.logger.Debug("nonce sweep", zap.Int("removed", removed))
			}
		}
	}
}

// sweepLocked drops expired records; if the set is still over MaxSize it
// keeps only the MaxSize newest-expiring records. This bounds memory under
// sustained load even when expiry lags. Caller must hold g.mu.
func (g *Guard) sweepLocked(now time.Time) int {
	before := len(g.records)

	for key, rec := range g.records {
		if !rec.expiresAt.After(now) {
			delete(g.records, key)
		}
	}

	if len(g.records) > g.cfg.MaxSize {
		type kv struct {
			k recordKey
			r record
		}
		all := make([]kv, 0, len(g.records))
		for k, r := range g.records {
			all = append(all, kv{k, r})
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].r.expiresAt.After(all[j].r.expiresAt)
		})
		for _, item := range all[g.cfg.MaxSize:] {
			delete(g.records, item.k)
		}
	}

	return before - len(g.records)
}

// checkFormatLocked runs the nonce and principal shape checks, which every
// validation entry point applies before anything else. Caller must hold g.mu.
func (g *Guard) checkFormatLocked(nonce, principal string) (Result, bool) {
	if len(nonce) < MinNonceLength {
		return g.rejectLocked(CodeInvalidFormat,
			fmt.Sprintf("nonce must be at least %d characters", MinNonceLength)), false
	}
	if principal == "" {
		return g.rejectLocked(CodeInvalidUser, "principal must not be empty"), false
	}
	return Result{}, true
}

// rejectLocked records a rejection against its reason code. Caller must
// hold g.mu.
func (g *Guard) rejectLocked(code ReasonCode, message string) Result {
	g.rejections[code]++
	return rejected(code, message)
}

// parseNumeric reports the numeric value of a nonce when it is a plain
// decimal, for strict-order comparison.
func parseNumeric(nonce string) (uint64, bool) {
	v, err := strconv.ParseUint(nonce, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
