// Package discovery implements the passive bus-address recorder described
// in SPEC_FULL.md §4.10: a read-only tap on the Link layer's inbound
// stream that records every source individual address and destination
// group address it observes, purely as an operational aid for the check
// CLI subcommand — never a source of bindings.
package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// Logger is the structured logging interface the recorder depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const schema = `
CREATE TABLE IF NOT EXISTS discovered_group_addresses (
	group_address TEXT PRIMARY KEY,
	last_seen     INTEGER NOT NULL,
	telegram_count INTEGER NOT NULL DEFAULT 0,
	has_read_response INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS discovered_devices (
	individual_address TEXT PRIMARY KEY,
	last_seen           INTEGER NOT NULL,
	telegram_count      INTEGER NOT NULL DEFAULT 0
);
`

// Recorder passively records addresses observed on the Link layer's
// inbound stream. It implements knx.NetworkListener so it can be installed
// via Link.AddTap alongside the real Network listener — it never gates or
// mutates bus traffic, only observes it.
//
// Grounded on the bridge's GARecorder: the upsert-by-prepared-statement
// shape is unchanged, adapted from knxd telegram recording to the host's
// own Link-layer cEMI frames.
type Recorder struct {
	db     *sql.DB
	logger Logger

	stmtMu    sync.Mutex
	gaStmt    *sql.Stmt
	deviceStmt *sql.Stmt

	mu     sync.RWMutex
	closed bool
}

// NewRecorder constructs a recorder backed by db. The caller owns db's
// lifecycle (open/close); Start/Stop only manage prepared statements.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, logger: noopLogger{}}
}

// SetLogger sets the recorder's logger.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start creates the discovery schema if absent and prepares the upsert
// statements. Must be called before DataInd observes any traffic.
func (r *Recorder) Start(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("discovery: creating schema: %w", err)
	}

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.gaStmt != nil {
		return nil
	}

	gaStmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO discovered_group_addresses (group_address, last_seen, telegram_count, has_read_response)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(group_address) DO UPDATE SET
			last_seen = excluded.last_seen,
			telegram_count = telegram_count + 1,
			has_read_response = MAX(has_read_response, excluded.has_read_response)
	`)
	if err != nil {
		return fmt.Errorf("discovery: preparing group address upsert: %w", err)
	}

	deviceStmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO discovered_devices (individual_address, last_seen, telegram_count)
		VALUES (?, ?, 1)
		ON CONFLICT(individual_address) DO UPDATE SET
			last_seen = excluded.last_seen,
			telegram_count = telegram_count + 1
	`)
	if err != nil {
		gaStmt.Close() //nolint:errcheck // best-effort cleanup on error path
		return fmt.Errorf("discovery: preparing device upsert: %w", err)
	}

	r.gaStmt = gaStmt
	r.deviceStmt = deviceStmt
	r.logger.Info("discovery recorder started")
	return nil
}

// Stop releases the prepared statements. Further DataInd calls become
// no-ops. Safe to call more than once.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.gaStmt != nil {
		r.gaStmt.Close() //nolint:errcheck // best-effort on shutdown
		r.gaStmt = nil
	}
	if r.deviceStmt != nil {
		r.deviceStmt.Close() //nolint:errcheck // best-effort on shutdown
		r.deviceStmt = nil
	}

	r.logger.Info("discovery recorder stopped")
}

// DataInd implements knx.NetworkListener. It records the frame's source
// individual address and, if group-addressed, its destination group
// address — best-effort, never blocking or erroring back to the Link.
func (r *Recorder) DataInd(f knx.Frame) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return
	}

	r.stmtMu.Lock()
	gaStmt, deviceStmt := r.gaStmt, r.deviceStmt
	r.stmtMu.Unlock()
	if gaStmt == nil || deviceStmt == nil {
		return
	}

	now := time.Now().Unix()

	if src := f.Src.String(); src != "0.0.0" {
		if _, err := deviceStmt.Exec(src, now); err != nil {
			r.logger.Warn("discovery: recording device failed", "error", err)
		}
	}

	if f.AddressType == knx.AddressGroup {
		ga := knx.GroupAddressFromUint16(f.Dst).String()
		hasResponse := 0
		if f.APCI == knx.APCIGroupValueResponse {
			hasResponse = 1
		}
		if _, err := gaStmt.Exec(ga, now, hasResponse); err != nil {
			r.logger.Warn("discovery: recording group address failed", "error", err)
		}
	}
}

// KnownGroupAddress is a group address the recorder has observed on the
// bus but that may or may not be bound in the binding table — the check
// CLI subcommand cross-references this list against the binding table to
// surface unbound traffic.
type KnownGroupAddress struct {
	GroupAddress    string
	LastSeen        time.Time
	TelegramCount   int
	HasReadResponse bool
}

// GroupAddresses returns every group address the recorder has observed,
// most recently seen first.
func (r *Recorder) GroupAddresses(ctx context.Context) ([]KnownGroupAddress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_address, last_seen, telegram_count, has_read_response
		FROM discovered_group_addresses
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("discovery: querying group addresses: %w", err)
	}
	defer rows.Close()

	var out []KnownGroupAddress
	for rows.Next() {
		var ga KnownGroupAddress
		var lastSeen int64
		var hasResponse int
		if err := rows.Scan(&ga.GroupAddress, &lastSeen, &ga.TelegramCount, &hasResponse); err != nil {
			return nil, fmt.Errorf("discovery: scanning group address row: %w", err)
		}
		ga.LastSeen = time.Unix(lastSeen, 0)
		ga.HasReadResponse = hasResponse != 0
		out = append(out, ga)
	}
	return out, rows.Err()
}

// GroupAddressCount returns the number of distinct group addresses seen.
func (r *Recorder) GroupAddressCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discovered_group_addresses`).Scan(&count)
	return count, err
}

// DeviceCount returns the number of distinct individual addresses seen.
func (r *Recorder) DeviceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discovered_devices`).Scan(&count)
	return count, err
}
