package envelope

import (
	"encoding/json"
	"strings"
	"testing"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func TestFilterValidate(t *testing.T) {
	valid := func(f Filter, mode Mode) {
		t.Helper()
		if errs := f.Validate(mode); errs != nil {
			t.Fatalf("expected valid filter, got %v", errs)
		}
	}
	invalid := func(f Filter, mode Mode, path string) {
		t.Helper()
		errs := f.Validate(mode)
		if errs == nil {
			t.Fatalf("expected invalid filter at %s, got valid", path)
		}
		for _, e := range errs {
			if e.Path == path {
				return
			}
		}
		t.Fatalf("expected error at %s, got %v", path, errs)
	}

	valid(Filter{}, ModeLocal)
	valid(Filter{Conditions: []Condition{{Field: FieldFrom, Operator: OpIs, Value: "a@b.com"}}}, ModeLocal)
	valid(Filter{Logic: LogicOr, Conditions: []Condition{
		{Field: FieldSeen},
		{Field: FieldUid, Operator: OpIsNot, Value: "42"},
	}}, ModeLocal)
	valid(Filter{Conditions: []Condition{{Field: FieldBody, Operator: OpIs, Value: "hello"}}}, ModeRemote)
	valid(Filter{Conditions: []Condition{{Field: FieldSince, Operator: OpIs, Value: "2024-02-29"}}}, ModeLocal)

	// Remote-only predicate in local mode.
	invalid(Filter{Conditions: []Condition{{Field: FieldBody, Operator: OpIs, Value: "x"}}}, ModeLocal, "conditions.0.field")
	invalid(Filter{Conditions: []Condition{{Field: FieldText, Operator: OpIs, Value: "x"}}}, ModeLocal, "conditions.0.field")

	// Combinator required for two conditions.
	invalid(Filter{Conditions: []Condition{{Field: FieldSeen}, {Field: FieldUnseen}}}, ModeLocal, "operator")

	// Unknown field.
	invalid(Filter{Conditions: []Condition{{Field: "Header", Operator: OpIs, Value: "x"}}}, ModeLocal, "conditions.0.field")

	// Missing/empty values.
	invalid(Filter{Conditions: []Condition{{Field: FieldFrom, Operator: OpIs}}}, ModeLocal, "conditions.0.value")
	invalid(Filter{Conditions: []Condition{{Field: FieldFrom, Value: "a@b.com"}}}, ModeLocal, "conditions.0.operator")

	// Flag fields take neither operator nor value.
	invalid(Filter{Conditions: []Condition{{Field: FieldSeen, Operator: OpIs}}}, ModeLocal, "conditions.0.operator")
	invalid(Filter{Conditions: []Condition{{Field: FieldUnseen, Value: "1"}}}, ModeLocal, "conditions.0.value")

	// Date rules.
	invalid(Filter{Conditions: []Condition{{Field: FieldBefore, Operator: OpIs, Value: "01-02-2024"}}}, ModeLocal, "conditions.0.value")
	invalid(Filter{Conditions: []Condition{{Field: FieldBefore, Operator: OpIs, Value: "1899-12-31"}}}, ModeLocal, "conditions.0.value")
	invalid(Filter{Conditions: []Condition{{Field: FieldBefore, Operator: OpIs, Value: "2999-01-01"}}}, ModeLocal, "conditions.0.value")

	// Number rules.
	invalid(Filter{Conditions: []Condition{{Field: FieldUid, Operator: OpIs, Value: "0"}}}, ModeLocal, "conditions.0.value")
	invalid(Filter{Conditions: []Condition{{Field: FieldLarger, Operator: OpIs, Value: "-1"}}}, ModeLocal, "conditions.0.value")
}

func TestFilterSerialize(t *testing.T) {
	f := Filter{
		Logic: LogicAnd,
		Conditions: []Condition{
			{Field: FieldFrom, Operator: OpIs, Value: "a@b.com"},
			{Field: FieldSubject, Operator: OpIsNot, Value: "hi"},
		},
	}
	buf, err := json.Marshal(f)
	tcheck(t, err, "marshal filter")
	exp := `{"operator":"and","conditions":[{"field":"From","operator":"is","value":"a@b.com"},{"field":"Subject","operator":"is not","value":"hi"}]}`
	if string(buf) != exp {
		t.Fatalf("got %s, expected %s", buf, exp)
	}

	// A combinator chosen on a single-condition filter is discarded.
	f = Filter{Logic: LogicOr, Conditions: []Condition{{Field: FieldSeen}}}
	buf, err = json.Marshal(f)
	tcheck(t, err, "marshal filter")
	exp = `{"conditions":[{"field":"Seen"}]}`
	if string(buf) != exp {
		t.Fatalf("got %s, expected %s", buf, exp)
	}
}

func TestFilterRoundtrip(t *testing.T) {
	f := Filter{
		Logic: LogicAnd,
		Conditions: []Condition{
			{Field: FieldFrom, Operator: OpIs, Value: "a@b.com"},
			{Field: FieldUid, Operator: OpIsNot, Value: "17"},
			{Field: FieldUnseen},
		},
	}
	if errs := f.Validate(ModeLocal); errs != nil {
		t.Fatalf("validate: %v", errs)
	}
	buf, err := json.Marshal(f)
	tcheck(t, err, "marshal filter")
	var back Filter
	err = json.Unmarshal(buf, &back)
	tcheck(t, err, "unmarshal filter")
	if errs := back.Validate(ModeLocal); errs != nil {
		t.Fatalf("roundtripped filter no longer valid: %v", errs)
	}
	buf2, err := json.Marshal(back)
	tcheck(t, err, "marshal roundtripped filter")
	if string(buf) != string(buf2) {
		t.Fatalf("got %s, expected %s", buf2, buf)
	}
}

func TestFilterReset(t *testing.T) {
	f := Filter{Logic: LogicAnd, Conditions: []Condition{{Field: FieldSeen}}}
	f.Reset()
	if !f.Empty() || f.Logic != "" {
		t.Fatalf("reset filter not empty: %#v", f)
	}
}

func TestConditionErrorPath(t *testing.T) {
	f := Filter{Logic: LogicAnd, Conditions: []Condition{
		{Field: FieldFrom, Operator: OpIs, Value: "a@b.com"},
		{Field: FieldUid, Operator: OpIs, Value: "nan"},
	}}
	errs := f.Validate(ModeLocal)
	if len(errs) != 1 || errs[0].Path != "conditions.1.value" {
		t.Fatalf("got %v, expected single error at conditions.1.value", errs)
	}
	if !strings.Contains(errs[0].Error(), "conditions.1.value") {
		t.Fatalf("error string %q does not mention path", errs[0].Error())
	}
}
