// Package statemachine holds the work-order transition table. Every command
// is checked here and nowhere else: terminal states first, then the caller's
// expected state, then the table entry and its guards.
package statemachine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

type Command string

const (
	CommandRequestAuthorization Command = "request_authorization"
	CommandApprove              Command = "approve"
	CommandReject               Command = "reject"
	CommandStart                Command = "start"
	CommandFinish               Command = "finish"
	CommandDeliver              Command = "deliver"
	CommandCancel               Command = "cancel"
)

var Commands = []Command{
	CommandRequestAuthorization,
	CommandApprove,
	CommandReject,
	CommandStart,
	CommandFinish,
	CommandDeliver,
	CommandCancel,
}

// MinCancelReason is the shortest accepted cancellation reason, in characters.
const MinCancelReason = 10

// Input carries what the guards need besides the order itself.
type Input struct {
	// Expected is the state the caller last saw. Empty skips the check.
	Expected model.State
	Actor    auth.UserContext
	Reason   string
}

// Guard inspects the locked order and returns a taxonomy error to refuse.
type Guard func(o *model.WorkOrder, in Input) error

type Transition struct {
	From    model.State
	Command Command
	To      model.State
	Guards  []Guard
}

type key struct {
	from model.State
	cmd  Command
}

var table = map[key]Transition{}

func init() {
	for _, t := range transitions() {
		k := key{t.From, t.Command}
		if _, dup := table[k]; dup {
			panic(fmt.Sprintf("statemachine: duplicate transition %s/%s", t.From, t.Command))
		}
		table[k] = t
	}
}

func transitions() []Transition {
	cancel := func(from model.State) Transition {
		return Transition{From: from, Command: CommandCancel, To: model.StateCancelled, Guards: []Guard{reasonLongEnough}}
	}
	return []Transition{
		{From: model.StatePending, Command: CommandRequestAuthorization, To: model.StateAwaitingAuthorization, Guards: []Guard{authorizationPending}},
		{From: model.StatePending, Command: CommandStart, To: model.StateInProgress, Guards: []Guard{gateOpen, technicianReady}},
		{From: model.StateAwaitingAuthorization, Command: CommandApprove, To: model.StateAwaitingAuthorization},
		{From: model.StateAwaitingAuthorization, Command: CommandReject, To: model.StatePending},
		{From: model.StateAwaitingAuthorization, Command: CommandStart, To: model.StateInProgress, Guards: []Guard{gateOpen, technicianReady}},
		{From: model.StateInProgress, Command: CommandFinish, To: model.StateCompleted, Guards: []Guard{ownWork}},
		{From: model.StateCompleted, Command: CommandDeliver, To: model.StateDelivered},
		cancel(model.StatePending),
		cancel(model.StateAwaitingAuthorization),
		cancel(model.StateInProgress),
		cancel(model.StateCompleted),
	}
}

// Fire validates cmd against the order and returns the transition to apply.
// The order is not mutated.
func Fire(o *model.WorkOrder, cmd Command, in Input) (Transition, error) {
	if err := Check(o, in.Expected); err != nil {
		return Transition{}, err
	}

	t, ok := table[key{o.State, cmd}]
	if !ok {
		return Transition{}, apperror.IllegalTransition(fmt.Sprintf("cannot %s an order in state %s", cmd, o.State))
	}
	for _, g := range t.Guards {
		if err := g(o, in); err != nil {
			return Transition{}, err
		}
	}
	return t, nil
}

// Check rejects any command on a terminal order, then any command whose
// expected state is stale. Commands outside the table (edits, technician
// assignment) call it directly.
func Check(o *model.WorkOrder, expected model.State) error {
	if o.State.Terminal() {
		return apperror.IllegalTransition(fmt.Sprintf("order %s is %s and accepts no further commands", o.OrderNumber, o.State))
	}
	if expected != "" && expected != o.State {
		return apperror.Conflict(fmt.Sprintf("order %s is %s, expected %s", o.OrderNumber, o.State, expected))
	}
	return nil
}

// Available lists the commands the table accepts from state, ignoring guards.
func Available(state model.State) []Command {
	var out []Command
	for _, cmd := range Commands {
		if _, ok := table[key{state, cmd}]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// CanLinkSale reports whether a sale may be created from the order.
func CanLinkSale(o *model.WorkOrder) error {
	if o.State != model.StateCompleted && o.State != model.StateDelivered {
		return apperror.IllegalTransition(fmt.Sprintf("a sale can only be created from a completed or delivered order, order %s is %s", o.OrderNumber, o.State))
	}
	if o.LinkedSaleID != nil {
		return apperror.IllegalTransition(fmt.Sprintf("order %s is already linked to sale %s", o.OrderNumber, *o.LinkedSaleID))
	}
	return nil
}

func authorizationPending(o *model.WorkOrder, _ Input) error {
	if !o.RequiresAuthorization {
		return apperror.IllegalTransition("order does not require authorization")
	}
	if o.Authorized != nil && *o.Authorized {
		return apperror.IllegalTransition("order is already authorized")
	}
	return nil
}

func gateOpen(o *model.WorkOrder, _ Input) error {
	if !o.Gate().Open() {
		return apperror.IllegalTransition("authorization required before work can start")
	}
	return nil
}

// technicianReady lets a technician take an unassigned order and keeps
// everyone else from starting one.
func technicianReady(o *model.WorkOrder, in Input) error {
	if o.HasTechnician() {
		if in.Actor.Role == auth.RoleTechnician && in.Actor.UserID != *o.TechnicianID {
			return apperror.Unauthorized("order is assigned to another technician")
		}
		return nil
	}
	if in.Actor.Role == auth.RoleTechnician && in.Actor.UserID != "" {
		return nil
	}
	return apperror.ValidationFields("technician required", map[string]string{"technician_id": "required"})
}

func ownWork(o *model.WorkOrder, in Input) error {
	if in.Actor.Role == auth.RoleTechnician && o.HasTechnician() && in.Actor.UserID != *o.TechnicianID {
		return apperror.Unauthorized("order is assigned to another technician")
	}
	return nil
}

func reasonLongEnough(_ *model.WorkOrder, in Input) error {
	if utf8.RuneCountInString(strings.TrimSpace(in.Reason)) < MinCancelReason {
		return apperror.ValidationFields(
			fmt.Sprintf("cancellation reason must be at least %d characters", MinCancelReason),
			map[string]string{"reason": "min"},
		)
	}
	return nil
}
