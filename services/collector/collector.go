// Package collector builds the network_inventory table from the switches Zabbix knows
// about: it lists hosts over the Zabbix API, walks each switch's bridge forwarding table
// over SNMP and upserts the learned MAC addresses.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CollectedSubject is the bus subject announcing a stored host.
const CollectedSubject = "macfinder.inventory.collected"

// HostSource lists the switches to collect.
type HostSource interface {
	Hosts(ctx context.Context) ([]Host, error)
}

// Walker reads the SNMP tables of one switch.
type Walker interface {
	Walk(ctx context.Context, target Target) (Tables, error)
}

// Sink persists the entries collected for a host.
type Sink interface {
	Upsert(ctx context.Context, host Host, entries []Entry, now time.Time) (int, error)
}

// Publisher announces stored hosts. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// Collected is the event payload published after a host is stored.
type Collected struct {
	RunID       string    `json:"run_id"`
	SwitchName  string    `json:"switch_name"`
	SwitchIP    string    `json:"switch_ip"`
	Vendor      string    `json:"vendor"`
	Entries     int       `json:"entries"`
	CollectedAt time.Time `json:"collected_at"`
}

// HostReport is printed for each host in single mode instead of storing.
type HostReport struct {
	Host    string  `json:"host"`
	IP      string  `json:"ip"`
	Vendor  string  `json:"vendor"`
	Entries []Entry `json:"entries"`
}

// Summary describes one collection run.
type Summary struct {
	RunID   string
	Hosts   int
	Skipped int
	Failed  int
	Entries int
}

// Options selects what a run does.
type Options struct {
	// Single limits the run to Host and prints its entries instead of storing them.
	Single bool
	Host   string
	// Workers bounds concurrent SNMP walks.
	Workers    int
	AccessOnly bool
	// Interval repeats the run until the context ends. Zero runs once.
	Interval time.Duration
	Out      io.Writer
}

// Deps are the collaborators of a Collector. Sink is optional in single mode; Publisher
// and FailLog are optional.
type Deps struct {
	Hosts     HostSource
	Walker    Walker
	Sink      Sink
	Publisher Publisher
	Subject   string
	FailLog   *FailLog
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Collector runs inventory collection.
type Collector struct {
	hosts     HostSource
	walker    Walker
	sink      Sink
	publisher Publisher
	subject   string
	fails     *FailLog
	logger    zerolog.Logger
	now       func() time.Time
}

// New validates deps.
func New(deps Deps) (*Collector, error) {
	if deps.Hosts == nil {
		return nil, errors.New("host source is required")
	}
	if deps.Walker == nil {
		return nil, errors.New("walker is required")
	}
	if deps.Subject == "" {
		deps.Subject = CollectedSubject
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Collector{
		hosts:     deps.Hosts,
		walker:    deps.Walker,
		sink:      deps.Sink,
		publisher: deps.Publisher,
		subject:   deps.Subject,
		fails:     deps.FailLog,
		logger:    deps.Logger,
		now:       deps.Now,
	}, nil
}

// Run collects once, or every opts.Interval until ctx is cancelled. In repeat mode a
// failed run is logged and the next one still happens.
func (c *Collector) Run(ctx context.Context, opts Options) error {
	if opts.Interval <= 0 || opts.Single {
		_, err := c.RunOnce(ctx, opts)
		return err
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx, opts); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("collection run failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single pass over all hosts.
func (c *Collector) RunOnce(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	logger := c.logger.With().Str("run_id", summary.RunID).Logger()

	if opts.Single && opts.Host == "" {
		return summary, errors.New("single mode requires a host")
	}
	if !opts.Single && c.sink == nil {
		return summary, errors.New("sink is required")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	hosts, err := c.hosts.Hosts(ctx)
	if err != nil {
		return summary, fmt.Errorf("list hosts: %w", err)
	}
	if opts.Single {
		hosts = selectHost(hosts, opts.Host)
		if len(hosts) == 0 {
			return summary, fmt.Errorf("host %q not found", opts.Host)
		}
	}

	logger.Info().Int("hosts", len(hosts)).Int("workers", workers).Msg("collection started")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, host := range hosts {
		if reason, detail := skipReason(host); reason != "" {
			c.fail(host, reason, detail)
			summary.Skipped++
			continue
		}

		g.Go(func() error {
			hostLogger := logger.With().Str("host", host.Name).Str("ip", host.IP).Logger()
			hostLogger.Debug().Msg("querying switch")

			tables, err := c.walker.Walk(gctx, Target{
				Host:      host.Name,
				IP:        host.IP,
				Community: host.Community,
				Vendor:    host.Vendor,
			})
			if err != nil {
				hostLogger.Warn().Err(err).Msg("snmp walk failed")
				c.fail(host, ReasonWalkFailed, err.Error())
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}

			entries := BuildEntries(tables, opts.AccessOnly)

			if opts.Single {
				mu.Lock()
				defer mu.Unlock()
				enc := json.NewEncoder(opts.Out)
				enc.SetIndent("", "  ")
				summary.Hosts++
				summary.Entries += len(entries)
				return enc.Encode(HostReport{Host: host.Name, IP: host.IP, Vendor: host.Vendor, Entries: entries})
			}

			stored, err := c.sink.Upsert(gctx, host, entries, c.now())
			if err != nil {
				hostLogger.Error().Err(err).Msg("store entries failed")
				c.fail(host, ReasonStoreFailed, err.Error())
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}
			collectedEntries.WithLabelValues(host.Vendor).Add(float64(stored))
			hostLogger.Info().Int("entries", stored).Msg("switch collected")

			mu.Lock()
			summary.Hosts++
			summary.Entries += stored
			mu.Unlock()

			c.publish(gctx, hostLogger, Collected{
				RunID:       summary.RunID,
				SwitchName:  host.Name,
				SwitchIP:    host.IP,
				Vendor:      host.Vendor,
				Entries:     stored,
				CollectedAt: c.now().UTC(),
			})
			return nil
		})
	}

	err = g.Wait()
	if !opts.Single {
		lastRunHosts.Set(float64(summary.Hosts))
	}
	logger.Info().
		Int("collected", summary.Hosts).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("entries", summary.Entries).
		Msg("collection finished")
	return summary, err
}

func (c *Collector) fail(host Host, reason, detail string) {
	hostFailures.WithLabelValues(reason).Inc()
	c.fails.Record(host, reason, detail)
}

func (c *Collector) publish(ctx context.Context, logger zerolog.Logger, event Collected) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, c.subject, event); err != nil {
		logger.Warn().Err(err).Msg("publish collection event")
	}
}

func skipReason(host Host) (string, string) {
	switch {
	case host.Community == "" || isMacro(host.Community):
		return ReasonEmptyCommunity, "community is empty or an unresolved macro; the host may not use SNMP v1/v2c"
	case host.Vendor == "" || host.Vendor == UnknownVendor:
		return ReasonUnknownVendor, "vendor is unknown; assign a mapped template to the host"
	}
	return "", ""
}

func selectHost(hosts []Host, name string) []Host {
	for _, h := range hosts {
		if h.Name == name {
			return []Host{h}
		}
	}
	return nil
}
