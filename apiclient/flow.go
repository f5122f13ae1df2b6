package apiclient

import (
	"encoding/json"
	"fmt"
	"sync"
)

// State is the position of one UI call in its lifecycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateSuccess
	StateExpectedError
	StateUnexpectedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSuccess:
		return "success"
	case StateExpectedError:
		return "expected_error"
	case StateUnexpectedError:
		return "unexpected_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the call has finished.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateExpectedError || s == StateUnexpectedError
}

// Operation names the user-facing call a flow belongs to.
type Operation string

const (
	OpRegister     Operation = "register"
	OpLogin        Operation = "login"
	OpCreatePrompt Operation = "create_prompt"
	OpHistory      Operation = "history"
	OpAdmin        Operation = "admin"
)

// Action is what the caller should do after a call settles.
type Action string

const (
	ActionNone Action = ""
	// ActionShowFieldErrors renders Step.Fields next to the inputs.
	ActionShowFieldErrors Action = "show_field_errors"
	// ActionShowMessage renders Step.Message in place.
	ActionShowMessage Action = "show_message"
	// ActionGoToLogin switches to login with Step.Phone pre-filled.
	ActionGoToLogin Action = "go_to_login"
	// ActionGoToRegister switches to registration with Step.Phone pre-filled.
	ActionGoToRegister Action = "go_to_register"
	// ActionRequestAdminKey asks for the admin key again.
	ActionRequestAdminKey Action = "request_admin_key"
	// ActionOfferRetry renders a generic banner with Step.TraceID and a retry button.
	ActionOfferRetry Action = "offer_retry"
)

// Step is the outcome of a settled call.
type Step struct {
	State   State
	Action  Action
	Message string
	TraceID string
	Phone   string
	Fields  map[string][]string
}

// Resolve maps the result of op to its next step. Unexpected failures only
// ever offer a retry; navigation is driven by expected codes alone.
func Resolve(op Operation, err error) Step {
	if err == nil {
		return Step{State: StateSuccess}
	}

	e, ok := AsError(err)
	if !ok || e.Unexpected() {
		step := Step{State: StateUnexpectedError, Action: ActionOfferRetry, Message: "Something went wrong. Please try again."}
		if ok {
			step.TraceID = e.TraceID
		}
		return step
	}

	step := Step{State: StateExpectedError, Action: ActionShowMessage, Message: e.Message, TraceID: e.TraceID}

	switch {
	case op == OpRegister && e.Code == "PHONE_ALREADY_EXISTS":
		step.Action = ActionGoToLogin
		step.Phone = detailString(e.Details, "phone")
	case op == OpLogin && e.Code == "USER_NOT_FOUND":
		step.Action = ActionGoToRegister
		step.Phone = detailString(e.Details, "phone")
	case op == OpAdmin && (e.Code == codeUnauthorized || e.Status == 401):
		step.Action = ActionRequestAdminKey
	case IsValidationError(e):
		if fields := ValidationFieldErrors(e); len(fields) > 0 {
			step.Action = ActionShowFieldErrors
			step.Fields = fields
		}
	}
	return step
}

func detailString(details json.RawMessage, key string) string {
	obj := parseObject(details)
	return firstString(obj[key])
}

// Flow tracks one call through Idle -> Pending -> terminal. A terminal
// flow may start again.
type Flow struct {
	mu    sync.Mutex
	op    Operation
	state State
	last  Step
}

func NewFlow(op Operation) *Flow {
	return &Flow{op: op}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Last returns the step produced by the most recent Finish.
func (f *Flow) Last() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Start moves the flow to Pending. It fails while a call is in flight.
func (f *Flow) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StatePending {
		return fmt.Errorf("%s: call already in flight", f.op)
	}
	f.state = StatePending
	f.last = Step{State: StatePending}
	return nil
}

// Finish settles a pending flow with the call's result.
func (f *Flow) Finish(err error) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StatePending {
		return Step{}, fmt.Errorf("%s: finish from %s", f.op, f.state)
	}
	f.last = Resolve(f.op, err)
	f.state = f.last.State
	return f.last, nil
}

// Run starts the flow, performs call and settles with its result.
func (f *Flow) Run(call func() error) (Step, error) {
	if err := f.Start(); err != nil {
		return Step{}, err
	}
	return f.Finish(call())
}
