// Command arcus-version negotiates the version of every server of a fleet
// and reports which servers can use the optimized multi-get path.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	arcus "github.com/computerphilosopher/arcus-c-client"
)

type Config struct {
	servers     string
	binary      bool
	concurrency int
	timeout     time.Duration
	noreply     bool
	verbose     bool
}

func main() {
	config := Config{}
	flag.StringVar(&config.servers, "servers", "127.0.0.1:11211", "comma separated server addresses")
	flag.BoolVar(&config.binary, "binary", false, "use the binary protocol")
	flag.IntVar(&config.concurrency, "concurrency", arcus.DefaultMaxConcurrency, "number of servers negotiated in parallel")
	flag.DurationVar(&config.timeout, "timeout", 5*time.Second, "timeout of the whole pass")
	flag.BoolVar(&config.noreply, "noreply", false, "run as a noreply client (negotiation is not supported)")
	flag.BoolVar(&config.verbose, "v", false, "log negotiation events")
	flag.Parse()

	os.Exit(run(config, os.Stdout, os.Stderr))
}

func run(config Config, out, logOut io.Writer) int {
	level := slog.LevelWarn
	if config.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	mode := arcus.ModeText
	if config.binary {
		mode = arcus.ModeBinary
	}

	fleet, err := arcus.NewFleet(arcus.Config{
		Servers:           strings.Split(config.servers, ","),
		Mode:              mode,
		NoReply:           config.noreply,
		MaxConcurrency:    config.concurrency,
		MaxConnsPerServer: 1,
		NewCircuitBreaker: arcus.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second),
		Logger:            logger,
	})
	if err != nil {
		fmt.Fprintf(out, "Failed to create fleet: %v\n", err)
		return 1
	}
	defer fleet.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.timeout)
	defer cancel()

	start := time.Now()
	res := fleet.NegotiateAll(ctx)
	elapsed := time.Since(start)

	failures := make(map[string]error, len(res.Failures))
	for _, f := range res.Failures {
		failures[f.Addr] = f.Err
	}

	fmt.Fprintf(out, "%-24s %-8s %-14s %s\n", "SERVER", "MODE", "VERSION", "OPTIMIZED_MGET")
	for _, s := range fleet.Servers() {
		version := s.Version().String()
		if err, ok := failures[s.Addr()]; ok {
			version = "error: " + err.Error()
		}
		fmt.Fprintf(out, "%-24s %-8s %-14s %t\n", s.Addr(), s.Mode(), version, s.OptimizedMultiGet())
	}

	fmt.Fprintf(out, "\nFleet: %s (%d servers in %v)\n", res.Status, len(fleet.Servers()), elapsed.Round(time.Millisecond))

	switch res.Status {
	case arcus.FleetPartialFailure:
		return 1
	case arcus.FleetNotSupported:
		return 2
	default:
		return 0
	}
}
