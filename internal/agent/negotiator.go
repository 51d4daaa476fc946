package agent

import (
	"log/slog"

	"github.com/ocx/oefbroker/internal/dialogue"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// Role distinguishes the two sides of a negotiation: the buyer opens a
// dialogue with a CFP describing what it wants, the seller answers with a
// Propose (or a Decline) describing what it has.
type Role int

const (
	RoleBuyer Role = iota
	RoleSeller
)

// negotiationStage tracks where a single dialogue is in the FIPA
// CFP/Propose/Accept-or-Decline exchange spec.md §3 assigns to the Fipa
// sub-messages, mirroring the state a Dialogue<T>'s opaque T carries in
// original_source/lib/include/agent.hpp.
type negotiationStage int

const (
	stageOpen negotiationStage = iota
	stageProposed
	stageClosed
)

// NegotiationState is the per-dialogue state a Negotiator stores in its
// internal/dialogue.Dialogues registry: which stage the exchange has
// reached and, on the buyer side, the criteria the original CFP asked
// for so a later Propose can be checked against it.
type NegotiationState struct {
	stage    negotiationStage
	criteria query.QueryModel
}

// Negotiator drives a two-party FIPA negotiation on top of an Agent,
// giving internal/dialogue.Dialogues an actual caller instead of only
// its own unit tests: every open negotiation is a live Dialogue keyed by
// the dialogue id the buyer's CFP mints. Grounded on
// apps/clientsherd/src/main.cpp's SimpleAgent for the "embed NoOpCallbacks,
// override a few" shape, generalised from search-only to the full
// negotiation lifecycle.
type Negotiator struct {
	NoOpCallbacks

	agent     *Agent
	role      Role
	dialogues *dialogue.Dialogues[*NegotiationState]
	offer     query.Instance
	logger    *slog.Logger
}

// NewNegotiator wraps agent with negotiation behaviour. offer is only
// consulted on the seller side: it is the Instance proposed in answer to
// a matching CFP.
func NewNegotiator(agent *Agent, role Role, offer query.Instance, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		agent:     agent,
		role:      role,
		dialogues: dialogue.New[*NegotiationState](),
		offer:     offer,
		logger:    logger,
	}
}

// OpenDialogues reports how many negotiations are currently in flight,
// exposed mainly for demonstrators and tests to observe progress.
func (n *Negotiator) OpenDialogues() int {
	return n.dialogues.Len()
}

// StartNegotiation opens a new dialogue with dest and sends it a CFP
// carrying criteria, the buyer side of the exchange.
func (n *Negotiator) StartNegotiation(msgID uint32, dest string, criteria query.QueryModel) error {
	dlg := n.dialogues.Create(dest)
	dlg.State = &NegotiationState{stage: stageOpen, criteria: criteria}
	return n.agent.SendCFP(msgID, dlg.UUID, dest, 0, wire.CFPType{Query: &criteria})
}

// OnCFP implements the seller side: it inspects the CFP's query against
// its own offer and answers with a Propose on a match, a Decline
// otherwise. dialogueID is reused verbatim as spec.md §4.3 requires so
// the buyer's dialogue lookup on reply succeeds.
func (n *Negotiator) OnCFP(_, dialogueID uint32, origin string, target uint32, constraints wire.CFPType) {
	if n.role != RoleSeller {
		return
	}
	dlg := n.dialogues.GetOrCreate(dialogueID, origin)
	dlg.State = &NegotiationState{stage: stageOpen}

	matches := constraints.Query == nil || constraints.Query.Check(n.offer)
	msgID := dlg.NextMsgID()
	if !matches {
		if err := n.agent.SendDecline(msgID, dialogueID, origin, target); err != nil {
			n.logger.Warn("negotiator: declining CFP failed", "error", err)
		}
		dlg.SetFinished()
		return
	}

	dlg.State.stage = stageProposed
	if err := n.agent.SendPropose(msgID, dialogueID, origin, target, wire.ProposeType{Instances: []query.Instance{n.offer}}); err != nil {
		n.logger.Warn("negotiator: sending propose failed", "error", err)
	}
}

// OnPropose implements the buyer side: every proposed Instance is
// validated against its own DataModel (query.Instance.Validate) before
// being checked against the dialogue's original criteria; the first
// valid, matching instance is accepted, and the dialogue is declined and
// closed otherwise.
func (n *Negotiator) OnPropose(_, dialogueID uint32, origin string, target uint32, proposals wire.ProposeType) {
	if n.role != RoleBuyer {
		return
	}
	dlg, err := n.dialogues.Get(dialogueID)
	if err != nil {
		n.logger.Warn("negotiator: propose for unknown dialogue", "dialogue", dialogueID, "error", err)
		return
	}

	accepted := false
	for _, instance := range proposals.Instances {
		if err := instance.Validate(); err != nil {
			n.logger.Warn("negotiator: seller offered an invalid instance", "error", err)
			continue
		}
		if dlg.State.criteria.Check(instance) {
			accepted = true
			break
		}
	}

	msgID := dlg.NextMsgID()
	if accepted {
		dlg.State.stage = stageClosed
		if err := n.agent.SendAccept(msgID, dialogueID, origin, target); err != nil {
			n.logger.Warn("negotiator: sending accept failed", "error", err)
		}
	} else {
		if err := n.agent.SendDecline(msgID, dialogueID, origin, target); err != nil {
			n.logger.Warn("negotiator: sending decline failed", "error", err)
		}
	}
	dlg.SetFinished()
}

// OnAccept closes out the seller's dialogue once the buyer accepts.
func (n *Negotiator) OnAccept(_, dialogueID uint32, origin string, _ uint32) {
	if dlg, err := n.dialogues.Get(dialogueID); err == nil {
		n.logger.Info("negotiator: offer accepted", "peer", origin)
		dlg.SetFinished()
	}
}

// OnDecline closes out the dialogue on either side when a peer declines.
func (n *Negotiator) OnDecline(_, dialogueID uint32, origin string, _ uint32) {
	if dlg, err := n.dialogues.Get(dialogueID); err == nil {
		n.logger.Info("negotiator: offer declined", "peer", origin)
		dlg.SetFinished()
	}
}
