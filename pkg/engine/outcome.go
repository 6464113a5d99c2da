package engine

import (
	"encoding/json"
	"fmt"
)

// OutcomeEntry is one operator/result/details triple in an outcome history.
type OutcomeEntry struct {
	// Operator names the operation that produced the entry.
	Operator string `json:"operator"`

	// Result is the recorded result state.
	Result OutcomeState `json:"result"`

	// Details is optional detail text, usually an error message.
	Details string `json:"details,omitempty"`
}

// OperationOutcome accumulates the result of an operation and the history of
// the nested operations that led to it. History is append-only and ordered
// oldest first.
type OperationOutcome struct {
	operator string
	result   OutcomeState
	details  string
	history  []OutcomeEntry
}

// NewOperationOutcome creates an outcome for the named operator. An optional
// details string may be supplied.
func NewOperationOutcome(operator string, result OutcomeState, details ...string) *OperationOutcome {
	o := &OperationOutcome{
		operator: operator,
		result:   result,
	}
	if len(details) > 0 {
		o.details = details[0]
	}
	return o
}

// Operator returns the current operator name.
func (o *OperationOutcome) Operator() string { return o.operator }

// Result returns the current result state.
func (o *OperationOutcome) Result() OutcomeState { return o.result }

// Details returns the current detail text.
func (o *OperationOutcome) Details() string { return o.details }

// History returns a copy of the history, oldest first.
func (o *OperationOutcome) History() []OutcomeEntry {
	out := make([]OutcomeEntry, len(o.history))
	copy(out, o.history)
	return out
}

// Update sets the current result. Details are replaced only when supplied.
// History is not touched.
func (o *OperationOutcome) Update(result OutcomeState, details ...string) *OperationOutcome {
	o.result = result
	if len(details) > 0 {
		o.details = details[0]
	}
	return o
}

// UpdateDetails sets the current details without changing the result.
func (o *OperationOutcome) UpdateDetails(details string) *OperationOutcome {
	o.details = details
	return o
}

// Push records the current state in history, adopts the child's state as
// current and appends the child's history after the snapshot.
func (o *OperationOutcome) Push(child *OperationOutcome) *OperationOutcome {
	o.history = append(o.history, o.current())
	o.operator = child.operator
	o.result = child.result
	o.details = child.details
	o.history = append(o.history, child.history...)
	return o
}

// PushStep is Push for a child with no history of its own.
func (o *OperationOutcome) PushStep(operator string, result OutcomeState, details string) error {
	if err := requireResult(result); err != nil {
		return err
	}
	o.Push(NewOperationOutcome(operator, result, details))
	return nil
}

// Append records the child as a subordinate step. The current result becomes
// the child's result and the current details are cleared. The child's own
// state and history are appended to this outcome's history; the caller's
// pre-call state is not archived.
func (o *OperationOutcome) Append(child *OperationOutcome) *OperationOutcome {
	o.result = child.result
	o.details = ""
	o.history = append(o.history, child.current())
	o.history = append(o.history, child.history...)
	return o
}

// AppendStep is Append for a child with no history of its own.
func (o *OperationOutcome) AppendStep(operator string, result OutcomeState, details string) error {
	if err := requireResult(result); err != nil {
		return err
	}
	o.Append(NewOperationOutcome(operator, result, details))
	return nil
}

// IsSucceeded returns true if the current result is Succeeded.
func (o *OperationOutcome) IsSucceeded() bool {
	return o.result == OutcomeSucceeded
}

// IsCanceled returns true if the current result is Canceled.
func (o *OperationOutcome) IsCanceled() bool {
	return o.result == OutcomeCanceled
}

// Telemetry projects the outcome into flat string properties: operator,
// result, operatingStack (JSON encoded history) and errorMessage. The error
// message is the current details if set, else the last non-empty details in
// history. It is omitted when neither exists.
func (o *OperationOutcome) Telemetry() map[string]string {
	data := map[string]string{
		"operator": o.operator,
		"result":   string(o.result),
	}

	stack := o.History()
	var lastDetails string
	for _, entry := range stack {
		if entry.Details != "" {
			lastDetails = entry.Details
		}
	}

	encoded, err := json.Marshal(stack)
	if err != nil {
		encoded = []byte("[]")
	}
	data["operatingStack"] = string(encoded)

	switch {
	case o.details != "":
		data["errorMessage"] = o.details
	case lastDetails != "":
		data["errorMessage"] = lastDetails
	}

	return data
}

// String implements fmt.Stringer.
func (o *OperationOutcome) String() string {
	if o.details != "" {
		return fmt.Sprintf("%s: %s (%s)", o.operator, o.result, o.details)
	}
	return fmt.Sprintf("%s: %s", o.operator, o.result)
}

func (o *OperationOutcome) current() OutcomeEntry {
	return OutcomeEntry{Operator: o.operator, Result: o.result, Details: o.details}
}

func requireResult(result OutcomeState) error {
	if !result.IsTerminal() {
		return NewInvariantError(
			"Result is missing. Available results are Succeeded, Failed and Canceled.", nil).
			WithDetail("result", string(result))
	}
	return nil
}
