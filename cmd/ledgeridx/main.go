package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyvit/ledgeridx"
	"github.com/andreyvit/ledgeridx/journal"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ledgeridx: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("ledgeridx: failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(ledgeridx.Collectors()...)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	snap, err := ledgeridx.OpenSnapshot(cfg.Snapshot, ledgeridx.SnapshotOptions{})
	if err != nil {
		return err
	}
	defer snap.Close()
	logger.Info("snapshot opened", "path", cfg.Snapshot, "created", snap.CreatedAt())

	opt := ledgeridx.Options{
		StoreOptions: ledgeridx.StoreOptions{
			Programs: cfg.Programs,
			StoreKey: cfg.StoreKey,
			Logger:   logger,
			Verbose:  cfg.Verbose,
			Logf: func(format string, args ...any) {
				logger.Debug(fmt.Sprintf(format, args...))
			},
		},
		Source: snap,
	}
	if cfg.ArweaveOnly {
		opt.MetadataFilter = ledgeridx.ArweaveOnly
	}
	eng := ledgeridx.New(opt)
	defer eng.Close()

	if err := eng.Load(ctx); err != nil {
		return err
	}

	if cfg.Journal != "" {
		j := journal.New(cfg.Journal, journal.Options{
			FileName:  "notifications-*.wal",
			DebugName: "notifications",
			Invariant: cfg.StoreKey,
			Logger:    logger,
		})
		n, err := eng.ReplayJournal(ctx, j)
		if err != nil {
			return fmt.Errorf("replaying journal: %w", err)
		}
		logger.Info("journal replayed", "records", n)
	}

	view, err := eng.View()
	if err != nil {
		return err
	}
	printStats(view)
	if cfg.Dump {
		fmt.Print(view.Dump(ledgeridx.DumpAll))
	} else {
		for _, m := range view.AdmissibleMetadata() {
			fmt.Printf("%v\t%v\t%s\t%s\n", m.Key, m.Info.Mint, m.Info.Name, m.Info.URI)
		}
	}

	if cfg.MetricsAddr != "" {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		<-ctx.Done()
	}
	return nil
}

func printStats(view *ledgeridx.View) {
	stats := view.Stats()
	for _, tbl := range ledgeridx.LedgerSchema().Tables() {
		ts := stats.Tables[tbl.Name()]
		if ts.Rows == 0 {
			continue
		}
		fmt.Fprintf(os.Stderr, "%-24s %8d rows %8d index entries\n", tbl.Name(), ts.Rows, ts.IndexRows)
	}
	if store := view.Store(); store != nil {
		fmt.Fprintf(os.Stderr, "store %v public=%v admissible=%d\n", store.Key, store.Info.Public, len(view.AdmissibleMetadata()))
	}
}
