package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Mode indicates where a listing/search is evaluated. Remote mode contacts
// the upstream IMAP store directly instead of the local index, and enables
// the body/text predicates.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Logic combines the conditions of a filter. It is required iff a filter has
// more than one condition. There is no nesting.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Operator negates or asserts a single condition.
type Operator string

const (
	OpIs    Operator = "is"
	OpIsNot Operator = "is not"
)

// Field is a searchable envelope attribute.
type Field string

const (
	FieldFrom Field = "From"
	FieldTo   Field = "To"
	FieldCc   Field = "Cc"
	FieldBcc  Field = "Bcc"

	FieldSubject Field = "Subject"
	FieldText    Field = "Text" // Remote only.
	FieldBody    Field = "Body" // Remote only.

	FieldBefore     Field = "Before"
	FieldOn         Field = "On"
	FieldSince      Field = "Since"
	FieldSentBefore Field = "SentBefore"
	FieldSentOn     Field = "SentOn"
	FieldSentSince  Field = "SentSince"

	FieldUid     Field = "Uid"
	FieldLarger  Field = "Larger"
	FieldSmaller Field = "Smaller"

	FieldSeen   Field = "Seen"
	FieldUnseen Field = "Unseen"
)

// Kind classifies fields by the shape of their value and whether an operator
// applies. The validator is driven by this table.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddress      // Non-empty string, operator required.
	KindText         // Non-empty string, operator required.
	KindDate         // ISO date YYYY-MM-DD, operator required.
	KindNumber       // Positive integer, operator required.
	KindFlag         // No value, no operator.
)

var fieldKinds = map[Field]Kind{
	FieldFrom:       KindAddress,
	FieldTo:         KindAddress,
	FieldCc:         KindAddress,
	FieldBcc:        KindAddress,
	FieldSubject:    KindText,
	FieldText:       KindText,
	FieldBody:       KindText,
	FieldBefore:     KindDate,
	FieldOn:         KindDate,
	FieldSince:      KindDate,
	FieldSentBefore: KindDate,
	FieldSentOn:     KindDate,
	FieldSentSince:  KindDate,
	FieldUid:        KindNumber,
	FieldLarger:     KindNumber,
	FieldSmaller:    KindNumber,
	FieldSeen:       KindFlag,
	FieldUnseen:     KindFlag,
}

// Kind returns the kind class of a field, KindUnknown for unrecognized fields.
func (f Field) Kind() Kind {
	return fieldKinds[f]
}

// RemoteOnly returns whether the field can only be searched in remote mode.
func (f Field) RemoteOnly() bool {
	return f == FieldText || f == FieldBody
}

// Fields returns all searchable fields, in a stable order for display.
func Fields() []Field {
	return []Field{
		FieldFrom, FieldTo, FieldCc, FieldBcc,
		FieldSubject, FieldText, FieldBody,
		FieldBefore, FieldOn, FieldSince, FieldSentBefore, FieldSentOn, FieldSentSince,
		FieldUid, FieldLarger, FieldSmaller,
		FieldSeen, FieldUnseen,
	}
}

// Condition is a single predicate over one envelope attribute. Operator and
// Value must be present or absent as the field kind dictates.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// Filter is an in-memory search filter: an ordered sequence of conditions and
// a combining logic. The zero value is the empty filter, matching everything.
//
// A filter is built up in memory, validated on submit, serialized into the
// search request and discarded on reset.
type Filter struct {
	Logic      Logic       `json:"operator,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Empty returns whether the filter has no conditions.
func (f Filter) Empty() bool {
	return len(f.Conditions) == 0
}

// Reset empties the filter.
func (f *Filter) Reset() {
	*f = Filter{}
}

// ConditionError is a validation error addressable to a single condition by
// index, e.g. path "conditions.0.field".
type ConditionError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ConditionError) Error() string {
	return e.Path + ": " + e.Message
}

func condErr(index int, part, msg string) ConditionError {
	return ConditionError{Path: fmt.Sprintf("conditions.%d.%s", index, part), Message: msg}
}

// Earliest accepted filter date. Dates in the future are rejected too.
var dateMin = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Validate checks the filter against the field kind table for the given mode.
// A nil return means the filter is valid. Otherwise all problems are
// returned, each addressable by condition index.
func (f Filter) Validate(mode Mode) []ConditionError {
	var errs []ConditionError

	if len(f.Conditions) >= 2 && f.Logic != LogicAnd && f.Logic != LogicOr {
		errs = append(errs, ConditionError{Path: "operator", Message: "combining operator required for multiple conditions"})
	}

	for i, c := range f.Conditions {
		kind := c.Field.Kind()
		if kind == KindUnknown {
			errs = append(errs, condErr(i, "field", fmt.Sprintf("unknown field %q", c.Field)))
			continue
		}
		if c.Field.RemoteOnly() && mode != ModeRemote {
			errs = append(errs, condErr(i, "field", fmt.Sprintf("field %q is only available when searching the remote store", c.Field)))
			continue
		}

		if kind == KindFlag {
			if c.Operator != "" {
				errs = append(errs, condErr(i, "operator", "operator not allowed for flag field"))
			}
			if c.Value != "" {
				errs = append(errs, condErr(i, "value", "value not allowed for flag field"))
			}
			continue
		}

		if c.Operator != OpIs && c.Operator != OpIsNot {
			errs = append(errs, condErr(i, "operator", `operator must be "is" or "is not"`))
		}
		if c.Value == "" {
			errs = append(errs, condErr(i, "value", "value required"))
			continue
		}

		switch kind {
		case KindDate:
			d, err := time.Parse(time.DateOnly, c.Value)
			if err != nil {
				errs = append(errs, condErr(i, "value", "date must be in YYYY-MM-DD form"))
			} else if d.Before(dateMin) {
				errs = append(errs, condErr(i, "value", "date before 1900-01-01"))
			} else if d.After(time.Now()) {
				errs = append(errs, condErr(i, "value", "date in the future"))
			}
		case KindNumber:
			n, err := strconv.ParseUint(c.Value, 10, 32)
			if err != nil || n == 0 {
				errs = append(errs, condErr(i, "value", "must be a positive integer"))
			}
		}
	}
	return errs
}

// MarshalJSON serializes the filter in the wire shape, preserving condition
// order. A single-condition filter omits the combining operator, also when
// one was chosen while building the filter.
func (f Filter) MarshalJSON() ([]byte, error) {
	type wireFilter struct {
		Operator   Logic       `json:"operator,omitempty"`
		Conditions []Condition `json:"conditions"`
	}
	wf := wireFilter{Operator: f.Logic, Conditions: f.Conditions}
	if len(f.Conditions) <= 1 {
		wf.Operator = ""
	}
	return json.Marshal(wf)
}
