package opac

import (
	"context"
	"fmt"

	"opacbridge/internal/components/assert"
	"opacbridge/internal/i18n"
)

// Token is an opaque value produced and consumed by exactly one adapter,
// callers pass it back unmodified.
type Token string

func (t Token) IsZero() bool {
	return t == ""
}

type ActionKind int

const (
	ActionReservation ActionKind = iota + 1
	ActionRenewal
	ActionRenewalAll
	ActionCancellation
)

func (k ActionKind) String() string {
	switch k {
	case ActionReservation:
		return "reservation"
	case ActionRenewal:
		return "renewal"
	case ActionRenewalAll:
		return "renewal of all items"
	case ActionCancellation:
		return "cancellation"
	}
	return "action"
}

type ActionStatus int

const (
	StatusOK ActionStatus = iota + 1
	StatusSelectionNeeded
	StatusError
	// StatusUnsupported means the backend never offers this action.
	StatusUnsupported
)

func (s ActionStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSelectionNeeded:
		return "SELECTION_NEEDED"
	case StatusError:
		return "ERROR"
	case StatusUnsupported:
		return "UNSUPPORTED"
	}
	return ""
}

// StepID names the question an adapter asked, 0 is the initial invocation.
type StepID int

const (
	StepInitial StepID = iota
	StepBranch
	StepCopy
	StepDelivery
	StepConfirm
)

// Step tells an adapter where an action continues. The zero Step is the
// initial invocation.
type Step struct {
	Action    StepID
	Selection Token
}

type Option struct {
	Key   Token
	Label string
}

type ActionResult struct {
	Status  ActionStatus
	Message string
	Kind    ActionKind
	// Action identifies the question when Status is StatusSelectionNeeded.
	Action  StepID
	Options []Option
}

func OK(kind ActionKind, message string) ActionResult {
	return ActionResult{Status: StatusOK, Kind: kind, Message: message}
}

func Failed(kind ActionKind, message string) ActionResult {
	return ActionResult{Status: StatusError, Kind: kind, Message: message}
}

func Unsupported(kind ActionKind) ActionResult {
	return ActionResult{Status: StatusUnsupported, Kind: kind}
}

func NeedSelection(kind ActionKind, action StepID, message string, options []Option) ActionResult {
	return ActionResult{Status: StatusSelectionNeeded, Kind: kind, Action: action, Message: message, Options: options}
}

// Resolved reports whether the result is terminal.
func (r ActionResult) Resolved() bool {
	return r.Status != StatusSelectionNeeded
}

func (r ActionResult) Offers(key Token) bool {
	for _, o := range r.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}

type FlowState int

const (
	FlowInitial FlowState = iota
	FlowSelectionNeeded
	FlowResolved
)

func (s FlowState) String() string {
	switch s {
	case FlowInitial:
		return "initial"
	case FlowSelectionNeeded:
		return "selection needed"
	case FlowResolved:
		return "resolved"
	}
	return ""
}

// ActionFunc runs one step of an action against a backend.
type ActionFunc func(ctx context.Context, step Step) (ActionResult, error)

// Flow drives a multi-step action from Initial over SelectionNeeded to
// Resolved. Keys passed to Resume must be one of the offered options, other
// keys are rejected without calling the backend.
type Flow struct {
	kind    ActionKind
	run     ActionFunc
	strings i18n.Provider

	state  FlowState
	result ActionResult
}

func NewFlow(kind ActionKind, run ActionFunc, strings i18n.Provider) *Flow {
	assert.NotNil(strings)
	return &Flow{kind: kind, run: run, strings: strings}
}

// resolvedFlow is a flow whose outcome is known without asking the backend.
func resolvedFlow(kind ActionKind, result ActionResult, strings i18n.Provider) *Flow {
	f := &Flow{
		kind:    kind,
		strings: strings,
		run: func(context.Context, Step) (ActionResult, error) {
			return result, nil
		},
	}
	return f
}

func (f *Flow) State() FlowState {
	return f.state
}

// Result is the last result, meaningful once Begin succeeded.
func (f *Flow) Result() ActionResult {
	return f.result
}

func (f *Flow) Begin(ctx context.Context) (ActionResult, error) {
	if f.state != FlowInitial {
		return ActionResult{}, InternalStateError("%s already started (%s)", f.kind, f.state)
	}
	return f.step(ctx, Step{})
}

func (f *Flow) Resume(ctx context.Context, key Token) (ActionResult, error) {
	if f.state != FlowSelectionNeeded {
		return ActionResult{}, InternalStateError("%s cannot be resumed (%s)", f.kind, f.state)
	}
	if !f.result.Offers(key) {
		return ActionResult{}, &Error{
			Kind:    KindInternalState,
			Key:     i18n.KeySelectionNotOffered,
			Message: fmt.Sprintf("selection '%s' was not offered", key),
		}
	}
	return f.step(ctx, Step{Action: f.result.Action, Selection: key})
}

func (f *Flow) step(ctx context.Context, step Step) (ActionResult, error) {
	res, err := f.run(ctx, step)
	if err != nil {
		return ActionResult{}, fmt.Errorf("%s: %w", f.kind, err)
	}
	res.Kind = f.kind
	switch res.Status {
	case StatusOK, StatusUnsupported:
	case StatusSelectionNeeded:
		if len(res.Options) == 0 {
			res = Failed(f.kind, f.strings.Get(i18n.KeyUnexpectedBackendContent))
		}
	default:
		res.Status = StatusError
		if res.Message == "" {
			res.Message = f.strings.Get(i18n.KeyError)
		}
	}
	f.result = res
	if res.Status == StatusSelectionNeeded {
		f.state = FlowSelectionNeeded
	} else {
		f.state = FlowResolved
	}
	return res, nil
}

func Reservation(a Adapter, item DetailedItem, acc Account, strings i18n.Provider) *Flow {
	assert.NotNil(a)
	return NewFlow(ActionReservation, func(ctx context.Context, step Step) (ActionResult, error) {
		return a.Reserve(ctx, item, acc, step)
	}, strings)
}

// Renewal resolves to an error carrying the recorded reason without calling
// the adapter when the item has no renewal token.
func Renewal(a Adapter, item LentItem, acc Account, strings i18n.Provider) *Flow {
	assert.NotNil(a)
	if !item.Renewable() {
		reason := item.NotRenewableReason
		if reason == "" {
			reason = strings.Get(i18n.KeyNotRenewable)
		}
		return resolvedFlow(ActionRenewal, Failed(ActionRenewal, reason), strings)
	}
	return NewFlow(ActionRenewal, func(ctx context.Context, step Step) (ActionResult, error) {
		return a.Renew(ctx, item.RenewalToken, acc, step)
	}, strings)
}

func RenewalAll(a Adapter, acc Account, strings i18n.Provider) *Flow {
	assert.NotNil(a)
	return NewFlow(ActionRenewalAll, func(ctx context.Context, step Step) (ActionResult, error) {
		return a.RenewAll(ctx, acc, step)
	}, strings)
}

func Cancellation(a Adapter, item ReservedItem, acc Account, strings i18n.Provider) *Flow {
	assert.NotNil(a)
	if !item.Cancelable() {
		return resolvedFlow(ActionCancellation, Failed(ActionCancellation, strings.Get(i18n.KeyNotCancelable)), strings)
	}
	return NewFlow(ActionCancellation, func(ctx context.Context, step Step) (ActionResult, error) {
		return a.Cancel(ctx, item.CancelToken, acc, step)
	}, strings)
}
