package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"libdb.so/lightorgan"
)

var (
	config  = "lightorgan.toml"
	verbose = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stripCloser is a Strip that owns a resource, which both drivers do.
type stripCloser interface {
	lightorgan.Strip
	io.Closer
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	logLevel := cfg.LogLevel.Level()
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	strip, err := openStrip(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open strip: %w", err)
	}
	defer strip.Close()

	pipeline, err := lightorgan.NewPipeline(cfg, strip, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	// The launcher waits for this exact line before it starts feeding
	// audio. stdout carries nothing else.
	fmt.Println("INITIALIZED")

	if err := pipeline.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	return nil
}

func openStrip(cfg *lightorgan.Config, logger *slog.Logger) (stripCloser, error) {
	if cfg.Device == "term" {
		return lightorgan.NewTermStrip(os.Stderr, cfg.LEDCount), nil
	}
	return lightorgan.OpenSerialStrip(cfg.Device, cfg.Baud, cfg.LEDCount, logger)
}

func readConfig() (*lightorgan.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return lightorgan.ParseConfig(f)
}
