package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tap_talos/internal/domain"
	"tap_talos/internal/infra"
	"tap_talos/internal/infra/storage"
	"tap_talos/internal/infra/talos"
	"tap_talos/internal/singer"
	"tap_talos/internal/tap"
)

// Bootstrap orchestrates the tap startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Streams []*tap.Stream
	Writer  *singer.Writer

	// LastRun is the sync run recorded by the most recent Sync, when mirroring.
	LastRun *domain.SyncRun

	clientOpts []talos.Option
	logger     *slog.Logger
}

// NewBootstrap creates a Bootstrap writing Singer messages to out.
// clientOpts are applied to the Talos client after the config-derived ones.
func NewBootstrap(out io.Writer, clientOpts ...talos.Option) *Bootstrap {
	return &Bootstrap{
		Writer:     singer.NewWriter(out),
		clientOpts: clientOpts,
		logger:     slog.Default(),
	}
}

// Initialize loads config, sets up logging, storage and the streams.
// An empty schemaPath uses the bundled balances schema.
func (b *Bootstrap) Initialize(configPath, schemaPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	b.logger = infra.NewLogger(cfg)
	slog.SetDefault(b.logger)
	b.logger.Info("Bootstrapping tap", "tap", tap.Name, "version", tap.Version, "credentials", cfg.Credentials())

	// 3. Streams
	schema, err := tap.LoadSchema(schemaPath)
	if err != nil {
		return err
	}
	numeric, err := tap.NumericFields(schema)
	if err != nil {
		return err
	}

	opts := []talos.Option{
		talos.WithNumericFields(numeric...),
		talos.WithLogger(b.logger),
	}
	client := talos.NewClient(cfg.Credentials(), time.Duration(cfg.RequestTimeout)*time.Second, append(opts, b.clientOpts...)...)

	balances, err := tap.NewBalancesStream(schema, client.FetchBalances)
	if err != nil {
		return err
	}
	b.Streams = []*tap.Stream{balances}

	// 4. Initialize Storage (optional mirror)
	if cfg.SQLitePath != "" {
		store, err := storage.NewStorage(cfg.SQLitePath)
		if err != nil {
			return err
		}
		b.Storage = store
		b.logger.Info("Balance mirror enabled", "path", cfg.SQLitePath)
	}

	return nil
}

// Discover writes the catalog as indented JSON.
func (b *Bootstrap) Discover(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tap.New(b.Writer, b.Streams, tap.WithLogger(b.logger)).Discover())
}

// Sync runs every selected stream. The metrics snapshot is logged either way.
func (b *Bootstrap) Sync(ctx context.Context, catalogPath, statePath string) (err error) {
	catalog, err := singer.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	state, err := singer.LoadState(statePath)
	if err != nil {
		return err
	}

	opts := []tap.Option{tap.WithLogger(b.logger)}
	if b.Storage != nil {
		run, startErr := b.Storage.StartRun(tap.BalancesStreamName)
		if startErr != nil {
			return startErr
		}
		b.LastRun = run
		mirror := b.Storage.Mirror(run, b.Streams[0].PrimaryKeys)
		opts = append(opts, tap.WithSinks(mirror))
		defer func() {
			if cerr := mirror.Close(err); cerr != nil {
				b.logger.Error("Failed to close sync run", "run_id", run.ID, "error", cerr)
				return
			}
			b.logger.Info("Sync run recorded", "run_id", run.ID, "status", run.Status, "mirrored", mirror.Count())
		}()
	}

	defer func() {
		b.logger.Info("Sync metrics", "metrics", infra.GlobalMetrics.Snapshot())
	}()

	if err := tap.New(b.Writer, b.Streams, opts...).Sync(ctx, catalog, state); err != nil {
		return err
	}
	return nil
}

// Close releases storage.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	if err := b.Storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
