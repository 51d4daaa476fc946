// Command oef-negotiator demonstrates the FIPA CFP/Propose/Accept
// negotiation flow (spec.md §3, §4.3's Dialogue registry) end to end: a
// buyer and a seller agent connect to an in-process broker over C6's
// LocalProxy and run a single negotiation to completion. Grounded on
// cmd/oef-client-herd/main.go for wiring style, generalised from a
// single search call to the full negotiation lifecycle in
// internal/agent.Negotiator.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ocx/oefbroker/internal/agent"
	"github.com/ocx/oefbroker/internal/broker"
	"github.com/ocx/oefbroker/internal/proxy"
	"github.com/ocx/oefbroker/internal/query"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	scheduler := broker.New(64, nil, logger)
	defer scheduler.Stop()

	bookModel := query.DataModel{
		Name: "book",
		Attributes: []query.Attribute{
			{Name: "genre", Type: query.TypeString, Required: true},
			{Name: "price", Type: query.TypeFloat, Required: true},
		},
	}
	offer := query.Instance{
		Model:  bookModel,
		Values: map[string]any{"genre": "scifi", "price": 12.5},
	}
	criteria := query.QueryModel{
		ModelName: "book",
		Constraints: []query.Constraint{
			{AttributeName: "genre", Expr: query.Relation{Op: query.OpEq, Value: "scifi"}},
			{AttributeName: "price", Expr: query.Range{Min: 0.0, Max: 20.0}},
		},
	}

	seller, err := newNegotiatingAgent(scheduler, "seller", agent.RoleSeller, offer, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oef-negotiator: seller setup failed: %v\n", err)
		os.Exit(1)
	}
	defer seller.agent.Stop()

	buyer, err := newNegotiatingAgent(scheduler, "buyer", agent.RoleBuyer, query.Instance{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oef-negotiator: buyer setup failed: %v\n", err)
		os.Exit(1)
	}
	defer buyer.agent.Stop()

	if err := buyer.negotiator.StartNegotiation(0, "seller", criteria); err != nil {
		fmt.Fprintf(os.Stderr, "oef-negotiator: opening CFP failed: %v\n", err)
		os.Exit(1)
	}

	// The scheduler's single dispatch worker drives the CFP/Propose/Accept
	// exchange asynchronously; give it a moment to settle before reporting.
	time.Sleep(50 * time.Millisecond)

	logger.Info("oef-negotiator: negotiation settled",
		"buyer_open_dialogues", buyer.negotiator.OpenDialogues(),
		"seller_open_dialogues", seller.negotiator.OpenDialogues())
}

type negotiatingAgent struct {
	agent      *agent.Agent
	negotiator *agent.Negotiator
}

func newNegotiatingAgent(scheduler *broker.Scheduler, key string, role agent.Role, offer query.Instance, logger *slog.Logger) (*negotiatingAgent, error) {
	transport, err := proxy.NewLocalProxy(scheduler, key, logger)
	if err != nil {
		return nil, err
	}

	a := agent.New(key, transport, nil)
	negotiator := agent.NewNegotiator(a, role, offer, logger.With("agent", key))
	a.SetCallbacks(negotiator)
	if err := a.Start(); err != nil {
		return nil, err
	}

	return &negotiatingAgent{agent: a, negotiator: negotiator}, nil
}
