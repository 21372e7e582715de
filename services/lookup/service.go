package lookup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"macfinder/pkg/db"
	"macfinder/pkg/mac"
	"macfinder/pkg/telemetry"
)

const (
	accessFlag       = "1"
	accessPortLabel  = "Access Port"
	trunkPortLabel   = "Trunk port"
	tracerName       = "macfinder/lookup"
	selectByMACQuery = `
SELECT
    COALESCE(switch_name, '')             AS switch_name,
    COALESCE(switch_ip, '')               AS switch_ip,
    COALESCE(vendor, '')                  AS vendor,
    COALESCE(mac_address, '')             AS mac_address,
    COALESCE(port_name, '')               AS port_name,
    COALESCE(CAST(access AS TEXT), '')     AS access,
    COALESCE(CAST(created_at AS TEXT), '') AS created_at,
    COALESCE(CAST(updated_at AS TEXT), '') AS updated_at
FROM network_inventory
WHERE mac_address = %s
`
)

// Lookup failures. Callers match them with errors.Is; storage failures keep the driver
// detail in the chain.
var (
	ErrInputMissing       = errors.New("mac address is required")
	ErrInvalidMACFormat   = errors.New("invalid mac address format")
	ErrNotFound           = errors.New("mac address not found")
	ErrStorageUnavailable = errors.New("database connection failed")
	ErrQueryFailed        = errors.New("error executing query")
)

// DefaultExcludedPorts returns the port-name fragments that identify aggregation
// interfaces (port-channels and LAGs).
func DefaultExcludedPorts() []string {
	return []string{"Po", "Port-Channel", "lag"}
}

// Record is one network_inventory row as returned to clients.
type Record struct {
	SwitchName string `json:"switch_name" db:"switch_name"`
	SwitchIP   string `json:"switch_ip" db:"switch_ip"`
	Vendor     string `json:"vendor" db:"vendor"`
	MACAddress string `json:"mac_address" db:"mac_address"`
	PortName   string `json:"port_name" db:"port_name"`
	Access     string `json:"access" db:"access"`
	AccessVal  string `json:"access_val" db:"-"`
	CreatedAt  string `json:"created_at" db:"created_at"`
	UpdatedAt  string `json:"updated_at" db:"updated_at"`
}

// Config controls lookup behaviour.
type Config struct {
	// ExcludedPorts are case-sensitive substrings; rows whose port name contains any of
	// them are dropped. nil selects DefaultExcludedPorts.
	ExcludedPorts []string
	// QueryTimeout bounds the SELECT. Zero selects db.DefaultTimeout.
	QueryTimeout time.Duration
}

// Service answers MAC lookups against the inventory table. It holds no per-request state.
type Service struct {
	store  *db.DB
	config Config
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewService validates dependencies and applies defaults to cfg.
func NewService(store *db.DB, cfg Config, logger zerolog.Logger) (*Service, error) {
	if store == nil || store.DB == nil {
		return nil, errors.New("store is required")
	}
	if cfg.ExcludedPorts == nil {
		cfg.ExcludedPorts = DefaultExcludedPorts()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = db.DefaultTimeout
	}

	return &Service{
		store:  store,
		config: cfg,
		logger: logger,
		tracer: telemetry.Tracer(tracerName),
	}, nil
}

// Search normalizes raw, fetches the matching rows, labels their port mode and drops
// aggregation ports. It returns ErrNotFound when nothing survives the filter.
func (s *Service) Search(ctx context.Context, raw string) (records []Record, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "lookup.Search")
	defer func() {
		outcome := Outcome(err)
		span.SetAttributes(attribute.String("lookup.outcome", outcome), attribute.Int("lookup.results", len(records)))
		if err != nil && outcome != outcomeNotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		observeLookup(outcome, time.Since(start))
	}()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInputMissing
	}

	normalized, err := mac.Normalize(raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "normalize %q", raw), ErrInvalidMACFormat)
	}
	span.SetAttributes(
		attribute.String("lookup.mac", normalized),
		attribute.Bool("lookup.mac.multicast", mac.IsMulticast(normalized)),
		attribute.Bool("lookup.mac.local", mac.IsLocallyAdministered(normalized)),
	)
	if mac.IsMulticast(normalized) {
		s.logger.Debug().Str("mac", normalized).Msg("multicast address looked up; switches do not learn group addresses")
	}

	conn, err := s.store.Conn(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("mac", normalized).Msg("acquire database connection")
		return nil, errors.Mark(errors.Wrap(err, "acquire connection"), ErrStorageUnavailable)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("release database connection")
		}
	}()

	var rows []Record
	query := fmt.Sprintf(selectByMACQuery, s.store.Placeholder(1))
	if err = db.SelectTimeout(ctx, s.config.QueryTimeout, conn, &rows, query, normalized); err != nil {
		s.logger.Error().Err(err).Str("mac", normalized).Msg("select inventory records")
		return nil, errors.Mark(errors.Wrap(err, "select inventory records"), ErrQueryFailed)
	}

	records = FilterRecords(rows, s.config.ExcludedPorts)
	s.logger.Debug().
		Str("mac", normalized).
		Int("rows", len(rows)).
		Int("kept", len(records)).
		Msg("lookup complete")

	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Ping reports whether the store can be reached.
func (s *Service) Ping(ctx context.Context) error {
	if err := db.Ping(ctx, s.store); err != nil {
		return errors.Mark(err, ErrStorageUnavailable)
	}
	return nil
}

// FilterRecords labels each row's port mode and keeps the rows whose port name matches
// none of the excluded fragments.
func FilterRecords(rows []Record, excludedPorts []string) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		if excluded(row.PortName, excludedPorts) {
			continue
		}
		row.AccessVal = AccessLabel(row.Access)
		out = append(out, row)
	}
	return out
}

// AccessLabel maps the stored access flag to its display text.
func AccessLabel(flag string) string {
	if flag == accessFlag {
		return accessPortLabel
	}
	return trunkPortLabel
}

func excluded(port string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(port, pattern) {
			return true
		}
	}
	return false
}
