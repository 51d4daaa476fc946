// Command oef-client-herd is the client-herd demonstrator from spec.md
// §6.2, directly grounded on
// original_source/apps/clientsherd/src/main.cpp: it spins up N agents
// concurrently, connects each to a broker over TCP, and logs search
// results. Go's runtime scheduler plays the role the source's
// IoContextPool(10) plays; a sync.WaitGroup replaces
// std::async/std::future for joining.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"github.com/ocx/oefbroker/internal/agent"
	"github.com/ocx/oefbroker/internal/circuitbreaker"
	"github.com/ocx/oefbroker/internal/config"
	"github.com/ocx/oefbroker/internal/proxy"
	"github.com/ocx/oefbroker/internal/query"
)

// simpleAgent mirrors SimpleAgent from the source: it embeds
// NoOpCallbacks and overrides only OnSearchResult, which logs the result.
type simpleAgent struct {
	agent.NoOpCallbacks
	name   string
	logger *slog.Logger
}

func (s *simpleAgent) OnSearchResult(_ uint32, agents []string) {
	s.logger.Info("search result", "agent", s.name, "matches", agents)
}

func main() {
	var nbAgents uint32
	var prefix string
	var host string
	var configPath string

	flags := pflag.NewFlagSet("oef-client-herd", pflag.ContinueOnError)
	flags.Uint32VarP(&nbAgents, "nbAgents", "n", 100, "number of agents to spawn")
	flags.StringVarP(&prefix, "prefix", "p", "Agent_", "agent name prefix")
	flags.StringVarP(&host, "host", "h", "127.0.0.1", "broker host")
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file (optional; defaults are used otherwise)")
	help := flags.Bool("help", false, "show usage")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *help {
		flags.PrintDefaults()
		os.Exit(0)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oef-client-herd: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	address := fmt.Sprintf("%s:10000", host)
	dialBreakers := circuitbreaker.NewDialBreakers()

	var failures int32
	var wg sync.WaitGroup
	for i := uint32(0); i < nbAgents; i++ {
		wg.Add(1)
		go func(index uint32) {
			defer wg.Done()
			name := fmt.Sprintf("%s%d", prefix, index)
			if err := runAgent(context.Background(), address, name, cfg.Handshake.Timeout, logger, dialBreakers); err != nil {
				logger.Error("agent failed", "agent", name, "error", err)
				atomic.AddInt32(&failures, 1)
			}
		}(i)
	}
	wg.Wait()

	if failures > 0 {
		os.Exit(1)
	}
}

func runAgent(ctx context.Context, address, name string, handshakeTimeout time.Duration, logger *slog.Logger, dialBreakers *circuitbreaker.DialBreakers) error {
	transport, err := circuitbreaker.ExecuteWithFallback(
		dialBreakers.Breaker(address),
		func() (*proxy.NetworkProxy, error) {
			return proxy.Dial(ctx, address, name, 0, handshakeTimeout, logger)
		},
		func(err error) (*proxy.NetworkProxy, error) { return nil, err },
	)
	if err != nil {
		return err
	}

	callbacks := &simpleAgent{name: name, logger: logger}
	a := agent.New(name, transport, callbacks)
	if err := a.Start(); err != nil {
		transport.Stop()
		return err
	}
	defer a.Stop()

	return a.SearchAgents(0, query.QueryModel{})
}
