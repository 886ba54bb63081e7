package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ShallowState represents where an investment is in the shallow report lifecycle.
type ShallowState string

// Possible shallow state values
const (
	ShallowPending    ShallowState = "pending"
	ShallowInProgress ShallowState = "in_progress"
	ShallowDone       ShallowState = "done"
	ShallowError      ShallowState = "error"
)

// DeepState tracks the deep report lifecycle. It is independent of the
// shallow pipeline; the zero value means no deep report has been attempted.
type DeepState string

// Possible deep state values
const (
	DeepAbsent DeepState = ""
	DeepDone   DeepState = "done"
	DeepError  DeepState = "error"
)

// Investment is one fund holding flowing through the report pipeline.
// Descriptive fields are copied verbatim from the holdings import and are
// never rewritten by the pipeline.
type Investment struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Industry             string `json:"industry,omitempty"`
	Region               string `json:"region,omitempty"`
	Country              string `json:"country,omitempty"`
	IncorporationCountry string `json:"incorporationCountry,omitempty"`
	MarketValueNOK       string `json:"marketValueNok,omitempty"`
	MarketValueUSD       string `json:"marketValueUsd,omitempty"`
	Voting               string `json:"voting,omitempty"`
	Ownership            string `json:"ownership,omitempty"`

	ShallowState  ShallowState    `json:"state"`
	DeepState     DeepState       `json:"deepState,omitempty"`
	ShallowReport json.RawMessage `json:"shallowReport,omitempty"`
	DeepReport    json.RawMessage `json:"deepReport,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Validate checks if the Investment has valid data.
// Returns an error if any field fails validation.
func (i *Investment) Validate() error {
	if i.ID == "" {
		return ErrEmptyInvestmentID
	}

	if i.Name == "" {
		return ErrEmptyInvestmentName
	}

	if !isValidShallowState(i.ShallowState) {
		return fmt.Errorf("%w: %q", ErrInvalidShallowState, i.ShallowState)
	}

	if !isValidDeepState(i.DeepState) {
		return fmt.Errorf("%w: %q", ErrInvalidDeepState, i.DeepState)
	}

	return nil
}

// Clone returns a deep copy so that callers holding the copy cannot mutate
// shared state through the report byte slices.
func (i *Investment) Clone() *Investment {
	if i == nil {
		return nil
	}
	c := *i
	if i.ShallowReport != nil {
		c.ShallowReport = append(json.RawMessage(nil), i.ShallowReport...)
	}
	if i.DeepReport != nil {
		c.DeepReport = append(json.RawMessage(nil), i.DeepReport...)
	}
	return &c
}

// MarkInProgress moves a pending investment into the claimed state.
func (i *Investment) MarkInProgress() error {
	if i.ShallowState != ShallowPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.ShallowState, ShallowInProgress)
	}
	i.ShallowState = ShallowInProgress
	return nil
}

// CompleteShallow attaches a generated shallow report and finalizes the item.
func (i *Investment) CompleteShallow(report json.RawMessage) error {
	if i.ShallowState != ShallowInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.ShallowState, ShallowDone)
	}
	i.ShallowReport = report
	i.ShallowState = ShallowDone
	return nil
}

// FailShallow finalizes a claimed item as failed. Any previously attached
// report is left untouched.
func (i *Investment) FailShallow() error {
	if i.ShallowState != ShallowInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.ShallowState, ShallowError)
	}
	i.ShallowState = ShallowError
	return nil
}

// ResetFrom overwrites the investment with a known-good snapshot and puts
// it back into the pending state. Reports and deep state are whatever the
// snapshot holds.
func (i *Investment) ResetFrom(snapshot *Investment) {
	*i = *snapshot.Clone()
	i.ShallowState = ShallowPending
}

// IsFinal reports whether the shallow lifecycle has reached a terminal state.
func (s ShallowState) IsFinal() bool {
	return s == ShallowDone || s == ShallowError
}

func isValidShallowState(s ShallowState) bool {
	switch s {
	case ShallowPending, ShallowInProgress, ShallowDone, ShallowError:
		return true
	default:
		return false
	}
}

func isValidDeepState(s DeepState) bool {
	switch s {
	case DeepAbsent, DeepDone, DeepError:
		return true
	default:
		return false
	}
}
