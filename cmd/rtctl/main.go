package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/motor-rt/abi"
	"github.com/wippyai/motor-rt/config"
	"github.com/wippyai/motor-rt/guest"
	"github.com/wippyai/motor-rt/loader"
	"github.com/wippyai/motor-rt/metrics"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to TOML config file")
		root        = flag.String("root", "", "Filesystem sandbox root (overrides config)")
		wasmFile    = flag.String("wasm", "", "Path to wasm module to run against the runtime")
		funcName    = flag.String("func", "_start", "Exported function to call")
		slots       = flag.Bool("slots", false, "Print the dispatch table layout and exit")
		interactive = flag.Bool("i", false, "Interactive descriptor shell")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)")
	)
	flag.Parse()

	if *slots {
		printLayout()
		return
	}

	if *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: rtctl -wasm <file.wasm> [-func name] [-config file] [-root dir]")
		fmt.Fprintln(os.Stderr, "       rtctl -i [-root dir]  (interactive descriptor shell)")
		fmt.Fprintln(os.Stderr, "       rtctl -slots          (print dispatch table layout)")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *root != "" {
		cfg.FS.Root = *root
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if err := run(cfg, *wasmFile, *funcName, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Log.Development || term.IsTerminal(int(os.Stderr.Fd())) {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	return zc.Build()
}

func run(cfg *config.Config, wasmFile, funcName string, interactive bool) error {
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()
	loader.SetLogger(log)

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		srv := serveMetrics(log, cfg.Metrics.Addr, m)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	rt, err := loader.Load(cfg, loader.Options{Metrics: m})
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer func() {
		if err := rt.Shutdown(); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	if interactive {
		sh := &shell{slots: rt.Slots(), table: rt.Boot.Descriptors}
		return runInteractive(sh, rt.Boot.FS.Root())
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := guest.Run(ctx, rt.Table, data, funcName)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		fmt.Printf("Result: %v\n", results)
	}
	return nil
}

func serveMetrics(log *zap.Logger, addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

func printLayout() {
	fmt.Printf("Dispatch table ABI version %d, %d slots\n\n", abi.Version, abi.SlotCount)
	group := ""
	for _, s := range abi.Layout() {
		if s.Group() != group {
			group = s.Group()
			fmt.Printf("%s:\n", group)
		}
		fmt.Printf("  %2d  %s\n", s, s.Name())
	}
}
