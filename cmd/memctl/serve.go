package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/joshuapare/execmem/internal/logger"
	"github.com/joshuapare/execmem/mem"
	"github.com/joshuapare/execmem/mem/metrics"
)

var (
	serveAddr     string
	servePool     string
	serveInterval time.Duration
	serveBatch    int
	serveMaxSize  string
)

func init() {
	cmd := newServeCmd()
	cmd.Flags().StringVar(&serveAddr, "addr", ":9100", "Listen address for /metrics")
	cmd.Flags().StringVar(&servePool, "pool", "default", "Pool the background workload allocates from")
	cmd.Flags().DurationVar(&serveInterval, "interval", 100*time.Millisecond, "Time between workload batches")
	cmd.Flags().IntVar(&serveBatch, "batch", 100, "Operations per batch")
	cmd.Flags().StringVar(&serveMaxSize, "max-size", "2KiB", "Largest request size")
	rootCmd.AddCommand(cmd)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a workload and export allocator metrics",
		Long: `The serve command runs the simulate workload in the background and
exposes region, pool and low-memory metrics in Prometheus format on
/metrics until interrupted. Pools are made lock protected so they can be
scraped while in use.

Example:
  memctl serve --addr :9100
  memctl serve -c layout.yaml --pool chip --interval 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	maxSize, err := humanize.ParseBytes(serveMaxSize)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	l, err := loadLayout()
	if err != nil {
		return err
	}
	l.Pools = slices.Clone(l.Pools)
	for i := range l.Pools {
		if !slices.Contains(l.Pools[i].Requirements, "sem_protected") {
			l.Pools[i].Requirements = append(slices.Clone(l.Pools[i].Requirements), "sem_protected")
		}
	}
	sys, err := l.Build()
	if err != nil {
		return fmt.Errorf("failed to build layout: %w", err)
	}
	defer sys.Close()

	w, err := newWorkload(sys, servePool, time.Now().UnixNano(), maxSize)
	if err != nil {
		return err
	}

	col := metrics.New("execmem", sys.Space)
	for _, p := range sys.Pools {
		col.AddPool(p)
	}
	col.SetChain(w.chain)

	reg := prometheus.NewRegistry()
	reg.MustRegister(col, collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()
	batchErr := make(chan error, 1)
	go func() { batchErr <- runBatches(ctx, w) }()

	printInfo("Serving metrics on %s/metrics (layout %s, pool %s)\n", serveAddr, l.Name, servePool)

	batchesDone := false
	select {
	case <-ctx.Done():
	case err = <-srvErr:
	case err = <-batchErr:
		batchesDone = true
	}
	cancel()
	// The workload must stop before the Space is closed.
	if !batchesDone {
		if berr := <-batchErr; berr != nil && err == nil {
			err = berr
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// runBatches steps the workload every serveInterval until ctx is done.
func runBatches(ctx context.Context, w *workload) (err error) {
	defer func() {
		if v := recover(); v != nil {
			a, ok := mem.AsAlert(v)
			if !ok {
				panic(v)
			}
			err = fmt.Errorf("allocator alert after %d steps: %s", w.steps, a)
		}
	}()

	tick := time.NewTicker(serveInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		for range serveBatch {
			if err := w.step(); err != nil {
				return err
			}
		}
		logger.L.Debug("workload batch", "steps", w.steps, "live", len(w.pooled)+len(w.plain))
	}
}
