package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/btdeck/internal/ble"
	"github.com/chaz8081/btdeck/internal/config"
	"github.com/chaz8081/btdeck/internal/controller"
	"github.com/chaz8081/btdeck/internal/source"
	"github.com/chaz8081/btdeck/internal/source/bt"
	"github.com/chaz8081/btdeck/internal/source/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/btdeck/config.yaml)")
	sourceName := flag.String("source", "", "device source: sim or ble (overrides config)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "init-config: %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			fmt.Println("Config already exists at", config.DefaultConfigPath())
			return
		}
		fmt.Println("Wrote default config to", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *sourceName != "" {
		cfg.Source = *sourceName
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	src, closeSource := newSource(cfg)
	defer closeSource()

	opts := controller.DefaultOptions()
	opts.BatteryReads = cfg.BLE.BatteryReads
	opts.OnNotice = printNotice
	ctrl := controller.New(src, opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Loading devices...")
	if err := ctrl.Load(ctx); err == nil {
		printDevices(os.Stdout, ctrl)
	}

	fmt.Println("Type 'help' for commands. Ctrl+C to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(ctx, ctrl, parseCommand(line), os.Stdout); quit {
				fmt.Println("Goodbye!")
				return
			}
		}
	}
}

// newSource builds the configured device source and its teardown.
func newSource(cfg *config.Config) (source.Source, func()) {
	if cfg.Source == "ble" {
		filter := ""
		if cfg.BLE.BatteryServiceOnly {
			filter = ble.BatteryServiceUUID
		}
		src := bt.New(ble.NewTinyGoAdapter(), bt.Options{
			ScanWindow:    cfg.Scan.Window,
			ServiceFilter: filter,
		})
		return src, func() {
			if err := src.Close(); err != nil {
				slog.Warn("[BLE] disconnect on exit", "error", err)
			}
		}
	}

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	l := cfg.Sim.Latency
	src := sim.New(sim.DefaultStore(), sim.Options{
		Latency: sim.Latency{
			List:      l.List,
			Toggle:    l.Toggle,
			Rename:    l.Rename,
			Battery:   l.Battery,
			Discovery: l.Discovery,
		},
		ScanWindow:  cfg.Scan.Window,
		Rand:        rand.New(rand.NewPCG(seed, seed>>32)),
		Unavailable: cfg.Sim.Unavailable,
	})
	return src, func() {}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== btdeck ===")
	fmt.Printf("  Source:  %s\n", cfg.Source)
	fmt.Printf("  Scan:    %s window\n", cfg.Scan.Window)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("==============")
}

func printNotice(n controller.Notice) {
	printNoticeTo(os.Stdout, n)
}

func printNoticeTo(w io.Writer, n controller.Notice) {
	if n.Message == "" {
		fmt.Fprintf(w, "[%s] %s\n", n.Severity, n.Title)
		return
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", n.Severity, n.Title, n.Message)
}
