package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"macfinder/pkg/bus"
	"macfinder/pkg/db"
	"macfinder/pkg/telemetry"
	"macfinder/services/collector"
	"macfinder/services/lookup"
)

const serviceName = "inventory-collector"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "inventory-collector",
		Short:         "Collect switch forwarding tables into the MAC inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "collector.yaml", "Path to the collector configuration file")

	cmd.AddCommand(newCollectCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSearchCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	return cmd
}

func (o *rootOptions) load(ctx context.Context) (collector.Config, zerolog.Logger, error) {
	path := o.configPath
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && path == "collector.yaml" {
		// The default file is optional; the environment may carry everything.
		path = ""
	}
	cfg, err := collector.LoadConfig(ctx, path, nil)
	if err != nil {
		return collector.Config{}, zerolog.Nop(), err
	}
	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, logger, nil
}

func newCollectCommand(root *rootOptions) *cobra.Command {
	var (
		single   bool
		host     string
		workers  int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Walk every switch in the Zabbix group and store learned MAC addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if single && host == "" {
				return fmt.Errorf("--single requires --host")
			}

			zabbix, err := collector.NewZabbixClient(cfg.Zabbix, cfg.Vendors, nil)
			if err != nil {
				return err
			}

			fails, err := collector.OpenFailLog(cfg.FailLog)
			if err != nil {
				return err
			}
			defer fails.Close()

			deps := collector.Deps{
				Hosts:   zabbix,
				Walker:  collector.NewSNMPWalker(cfg.SNMP),
				Subject: cfg.NATS.Subject,
				FailLog: fails,
				Logger:  logger,
			}

			if !single {
				database, err := db.Open(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer database.Close()

				if err := db.Migrate(ctx, database); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}

				store, err := collector.NewStore(database)
				if err != nil {
					return err
				}
				deps.Sink = store

				if cfg.NATS.URL != "" {
					events, err := bus.New(bus.Config{
						URL:      cfg.NATS.URL,
						Stream:   cfg.NATS.Stream,
						Subjects: []string{cfg.NATS.Subject},
					})
					if err != nil {
						return err
					}
					defer events.Close()
					deps.Publisher = events
				}
			}

			c, err := collector.New(deps)
			if err != nil {
				return err
			}

			return c.Run(ctx, collector.Options{
				Single:     single,
				Host:       host,
				Workers:    cfg.Workers,
				AccessOnly: cfg.AccessOnly,
				Interval:   cfg.Interval,
				Out:        cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().BoolVar(&single, "single", false, "Process a single switch and print its entries instead of storing them")
	cmd.Flags().StringVar(&host, "host", "", "Zabbix host name used with --single")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent SNMP walks")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat collection at this interval until interrupted")
	return cmd
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the network_inventory schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(ctx)
			if err != nil {
				return err
			}

			database, err := db.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(ctx, database); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Str("dialect", string(database.Dialect())).Msg("schema up to date")
			return nil
		},
	}
}

func newSearchCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <mac>",
		Short: "Look up a MAC address in the inventory and print the API response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(ctx)
			if err != nil {
				return err
			}

			database, err := db.Open(ctx, cfg.Database, db.ReadOnly())
			if err != nil {
				return err
			}
			defer database.Close()

			svc, err := lookup.NewService(database, lookup.Config{}, logger)
			if err != nil {
				return err
			}

			records, err := svc.Search(ctx, args[0])
			_, body := lookup.NewResponse(records, err)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(body)
		},
	}
}

func newEventsCommand(root *rootOptions) *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print collection events from the bus until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := root.load(ctx)
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return fmt.Errorf("nats.url is not configured")
			}

			events, err := bus.New(bus.Config{
				URL:      cfg.NATS.URL,
				Stream:   cfg.NATS.Stream,
				Subjects: []string{cfg.NATS.Subject},
			})
			if err != nil {
				return err
			}
			defer events.Close()

			out := cmd.OutOrStdout()
			sub, err := events.Subscribe(ctx, cfg.NATS.Subject, durable, func(_ context.Context, data []byte) error {
				var ev collector.Collected
				if err := json.Unmarshal(data, &ev); err != nil {
					logger.Warn().Err(err).Msg("discarding malformed event")
					return nil
				}
				_, err := fmt.Fprintf(out, "%s %s %s (%s) %d entries run=%s\n",
					ev.CollectedAt.Format(time.RFC3339), ev.SwitchName, ev.SwitchIP, ev.Vendor, ev.Entries, ev.RunID)
				return err
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty reads as an ephemeral consumer")
	return cmd
}
