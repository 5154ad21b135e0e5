// Command lightorgan-run launches the light organ as two processes split by
// privilege: the renderer (optionally through sudo, since strip hardware
// often needs root) and the unprivileged microphone capture, joined by a
// pipe. It waits for the renderer's INITIALIZED line before any audio flows.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/lightorgan"
)

var (
	config  = "lightorgan.toml"
	sudo    = false
	verbose = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVar(&sudo, "sudo", sudo, "run the renderer through sudo")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
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

	rendererArgs := []string{findBinary("lightorgan"), "-c", config}
	if verbose {
		rendererArgs = append(rendererArgs, "-v")
	}
	if sudo {
		rendererArgs = append([]string{"sudo", "--"}, rendererArgs...)
	}

	// The renderer deliberately gets no context: on interrupt only the
	// capture dies, the renderer drains the pipe's EOF, blacks the strip
	// out and exits on its own.
	audioR, audioW := io.Pipe()
	renderer := exec.Command(rendererArgs[0], rendererArgs[1:]...)
	renderer.Stdin = audioR
	renderer.Stderr = os.Stderr

	rendererOut, err := renderer.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to pipe renderer stdout")
	}

	logger.Debug("starting renderer", "args", rendererArgs)
	if err := renderer.Start(); err != nil {
		return errors.Wrap(err, "failed to start renderer")
	}

	if err := awaitInitialized(rendererOut); err != nil {
		renderer.Wait()
		return err
	}
	go io.Copy(io.Discard, rendererOut)

	updates := int(math.Round(cfg.UpdatesPerSecond()))
	capture := exec.CommandContext(ctx, findBinary("lightorgan-capture"),
		"--sample-rate", strconv.Itoa(cfg.SampleRate),
		"--updates", strconv.Itoa(updates))
	capture.Stdout = audioW
	capture.Stderr = os.Stderr

	logger.Debug("starting capture", "args", capture.Args)
	if err := capture.Start(); err != nil {
		audioW.Close()
		renderer.Process.Kill()
		renderer.Wait()
		return errors.Wrap(err, "failed to start capture")
	}

	var errg errgroup.Group
	errg.Go(func() error {
		err := capture.Wait()
		// Capture gone for whatever reason: close the pipe so the renderer
		// sees EOF and drains.
		audioW.Close()
		if ctx.Err() != nil {
			return nil // interrupted, the expected way down
		}
		return errors.Wrap(err, "capture failed")
	})
	errg.Go(func() error {
		return errors.Wrap(renderer.Wait(), "renderer failed")
	})

	return errg.Wait()
}

// awaitInitialized blocks until the renderer announces readiness on its
// stdout, so audio never flows into a strip that is not up yet.
func awaitInitialized(out io.Reader) error {
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		if sc.Text() == "INITIALIZED" {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "failed to read renderer stdout")
	}
	return errors.New("renderer exited before initializing")
}

// findBinary prefers a sibling of this launcher over PATH, so an installed
// tree and a build directory both work.
func findBinary(name string) string {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

func readConfig() (*lightorgan.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	return lightorgan.ParseConfig(f)
}
