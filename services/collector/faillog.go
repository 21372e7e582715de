package collector

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Skip reasons recorded in the fail log and in metrics.
const (
	ReasonEmptyCommunity = "empty_community"
	ReasonUnknownVendor  = "unknown_vendor"
	ReasonWalkFailed     = "walk_failed"
	ReasonStoreFailed    = "store_failed"
)

// FailLog appends one JSON line per skipped or failed host. A nil FailLog discards.
type FailLog struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// OpenFailLog opens path for appending, creating it when missing.
func OpenFailLog(path string) (*FailLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open fail log: %w", err)
	}
	fl := NewFailLog(f)
	fl.closer = f
	return fl, nil
}

// NewFailLog writes to w.
func NewFailLog(w io.Writer) *FailLog {
	return &FailLog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Record notes that host was skipped for reason.
func (f *FailLog) Record(host Host, reason, detail string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger.Warn().
		Str("host", host.Name).
		Str("ip", host.IP).
		Str("reason", reason).
		Msg(detail)
}

// Close releases the underlying file, if any.
func (f *FailLog) Close() error {
	if f == nil || f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
