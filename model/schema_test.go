package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapFieldType(t *testing.T) {
	t.Parallel()

	cases := map[string]QuestionType{
		"singleLineText":      ShortText,
		"multilineText":       LongText,
		"singleSelect":        SingleSelect,
		"multipleSelects":     MultiSelect,
		"multipleAttachments": Attachment,
		"email":               ShortText,
		"url":                 ShortText,
		"phoneNumber":         ShortText,
		"number":              ShortText,
	}
	for native, want := range cases {
		got, err := MapFieldType(native)
		if err != nil {
			t.Fatalf("MapFieldType(%q) returned error: %v", native, err)
		}
		if got != want {
			t.Fatalf("MapFieldType(%q) = %q, want %q", native, got, want)
		}
	}

	_, err := MapFieldType("formula")
	if !errors.Is(err, ErrUnsupportedFieldType) {
		t.Fatalf("MapFieldType(formula) error = %v, want ErrUnsupportedFieldType", err)
	}
}

func TestAddQuestion(t *testing.T) {
	t.Parallel()

	form := Form{Title: "T"}
	form, q, err := form.AddQuestion(SourceField{
		ID:      "fldColor",
		Name:    "Favorite color",
		Type:    "singleSelect",
		Choices: []string{"Red", "Blue"},
	})
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}

	if q.Key == "" {
		t.Fatalf("new question must get a key")
	}
	if q.Type != SingleSelect {
		t.Fatalf("type = %q, want singleSelect", q.Type)
	}
	if q.Label != "Favorite color" || q.AirtableFieldID != "fldColor" {
		t.Fatalf("question did not carry over the field: %+v", q)
	}
	if diff := cmp.Diff([]string{"Red", "Blue"}, q.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if len(q.Rules) != 0 {
		t.Fatalf("fresh question must have no rules")
	}
	if len(form.Fields) != 1 || form.Fields[0].Key != q.Key {
		t.Fatalf("question must be appended to the form")
	}
}

func TestAddQuestionUnsupportedType(t *testing.T) {
	t.Parallel()

	form := Form{Fields: []Question{{Key: "q1", Type: ShortText}}}
	got, _, err := form.AddQuestion(SourceField{ID: "fldX", Name: "X", Type: "rollup"})
	if !errors.Is(err, ErrUnsupportedFieldType) {
		t.Fatalf("error = %v, want ErrUnsupportedFieldType", err)
	}
	if diff := cmp.Diff(form, got); diff != "" {
		t.Fatalf("failed AddQuestion must not change the form (-want +got):\n%s", diff)
	}
}

func TestQuestionKeysUnique(t *testing.T) {
	t.Parallel()

	form := Form{}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		var q Question
		var err error
		form, q, err = form.AddQuestion(SourceField{ID: "fld", Name: "N", Type: "singleLineText"})
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
		if seen[q.Key] {
			t.Fatalf("duplicate question key %q", q.Key)
		}
		seen[q.Key] = true
	}
}

func TestRemoveQuestionDropsDependentRules(t *testing.T) {
	t.Parallel()

	form := testForm() // C and D both reference B

	got := form.RemoveQuestion("qb")

	keys := make([]string, len(got.Fields))
	for i, q := range got.Fields {
		keys[i] = q.Key
	}
	if diff := cmp.Diff([]string{"qa", "qc", "qd"}, keys); diff != "" {
		t.Fatalf("remaining questions mismatch (-want +got):\n%s", diff)
	}

	// C had only the rule on B, so it is now always visible
	if len(got.Fields[1].Rules) != 0 {
		t.Fatalf("C must lose its rule on removed B, has %v", got.Fields[1].Rules)
	}
	if !IsVisible(got, "qc", AnswerSet{}) {
		t.Fatalf("C must be always visible after losing its only rule")
	}

	// D keeps its unrelated rule on A
	want := []Rule{{TargetKey: "qa", Operator: NotEquals, Value: ""}}
	if diff := cmp.Diff(want, got.Fields[2].Rules); diff != "" {
		t.Fatalf("D's surviving rules mismatch (-want +got):\n%s", diff)
	}

	// the receiver is untouched
	if len(form.Fields) != 4 || len(form.Fields[2].Rules) != 1 {
		t.Fatalf("RemoveQuestion must not mutate its receiver")
	}
}

func TestRuleTargetCandidates(t *testing.T) {
	t.Parallel()

	form := testForm()

	if got := form.RuleTargetCandidates("qa"); len(got) != 0 {
		t.Fatalf("first question has no candidates, got %v", got)
	}

	got := form.RuleTargetCandidates("qc")
	keys := make([]string, len(got))
	for i, q := range got {
		keys[i] = q.Key
	}
	if diff := cmp.Diff([]string{"qa", "qb"}, keys); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}

	if got := form.RuleTargetCandidates("nope"); got != nil {
		t.Fatalf("unknown question has no candidates, got %v", got)
	}
}

func TestAddRuleRejectsForwardReference(t *testing.T) {
	t.Parallel()

	// F appears after E: a rule on E may not target F
	form := Form{Fields: []Question{
		{Key: "qe", Type: ShortText},
		{Key: "qf", Type: ShortText},
	}}

	got, err := form.AddRule("qe", Rule{TargetKey: "qf", Operator: Equals, Value: "x"})
	if !errors.Is(err, ErrInvalidRuleTarget) {
		t.Fatalf("error = %v, want ErrInvalidRuleTarget", err)
	}
	if diff := cmp.Diff(form, got); diff != "" {
		t.Fatalf("failed AddRule must not change the form (-want +got):\n%s", diff)
	}
}

func TestAddRuleRejectsSelfReference(t *testing.T) {
	t.Parallel()

	form := testForm()
	_, err := form.AddRule("qc", Rule{TargetKey: "qc", Operator: Equals, Value: "x"})
	if !errors.Is(err, ErrInvalidRuleTarget) {
		t.Fatalf("error = %v, want ErrInvalidRuleTarget", err)
	}
}

func TestAddRuleRejectsUnknownOperator(t *testing.T) {
	t.Parallel()

	form := testForm()
	_, err := form.AddRule("qc", Rule{TargetKey: "qb", Operator: "matches", Value: "x"})
	if !errors.Is(err, ErrInvalidRuleTarget) {
		t.Fatalf("error = %v, want ErrInvalidRuleTarget", err)
	}
}

func TestAddRuleAppends(t *testing.T) {
	t.Parallel()

	form := testForm()
	got, err := form.AddRule("qd", Rule{TargetKey: "qc", Operator: Contains, Value: "x"})
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	if len(got.Fields[3].Rules) != 3 {
		t.Fatalf("rule must be appended, got %v", got.Fields[3].Rules)
	}
	if len(form.Fields[3].Rules) != 2 {
		t.Fatalf("AddRule must not mutate its receiver")
	}
}

func TestRemoveRule(t *testing.T) {
	t.Parallel()

	form := testForm()
	got := form.RemoveRule("qd", 0)

	want := []Rule{{TargetKey: "qa", Operator: NotEquals, Value: ""}}
	if diff := cmp.Diff(want, got.Fields[3].Rules); diff != "" {
		t.Fatalf("rules after removal mismatch (-want +got):\n%s", diff)
	}

	// out of range is a no-op
	got = form.RemoveRule("qd", 5)
	if len(got.Fields[3].Rules) != 2 {
		t.Fatalf("out-of-range RemoveRule must be a no-op")
	}
}

func TestReorderRejectsOrderViolation(t *testing.T) {
	t.Parallel()

	form := testForm()

	// moving C before B puts C's rule target after its owner
	got, err := form.Reorder([]string{"qa", "qc", "qb", "qd"})
	if !errors.Is(err, ErrOrderViolation) {
		t.Fatalf("error = %v, want ErrOrderViolation", err)
	}
	if diff := cmp.Diff(form, got); diff != "" {
		t.Fatalf("failed Reorder must leave the order unchanged (-want +got):\n%s", diff)
	}
}

func TestReorderRejectsBadPermutations(t *testing.T) {
	t.Parallel()

	form := testForm()
	for _, order := range [][]string{
		{"qa", "qb", "qc"},                // too short
		{"qa", "qb", "qc", "qz"},          // unknown key
		{"qa", "qb", "qc", "qc"},          // duplicate
		{"qa", "qb", "qc", "qd", "extra"}, // too long
	} {
		if _, err := form.Reorder(order); !errors.Is(err, ErrOrderViolation) {
			t.Fatalf("Reorder(%v) error = %v, want ErrOrderViolation", order, err)
		}
	}
}

func TestReorderValid(t *testing.T) {
	t.Parallel()

	form := testForm()

	// swapping A and B keeps every target before its owner
	got, err := form.Reorder([]string{"qb", "qa", "qc", "qd"})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	keys := make([]string, len(got.Fields))
	for i, q := range got.Fields {
		keys[i] = q.Key
	}
	if diff := cmp.Diff([]string{"qb", "qa", "qc", "qd"}, keys); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	// no rule was invalidated
	if err := got.Validate(); err != nil {
		t.Fatalf("reordered form must still validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := testForm().Validate(); err != nil {
		t.Fatalf("valid form must pass: %v", err)
	}

	forward := Form{Fields: []Question{
		{Key: "q1", Type: ShortText, Rules: []Rule{{TargetKey: "q2", Operator: Equals, Value: "x"}}},
		{Key: "q2", Type: ShortText},
	}}
	if err := forward.Validate(); err == nil {
		t.Fatalf("forward reference must fail validation")
	}

	dup := Form{Fields: []Question{
		{Key: "q1", Type: ShortText},
		{Key: "q1", Type: LongText},
	}}
	if err := dup.Validate(); err == nil {
		t.Fatalf("duplicate keys must fail validation")
	}

	badType := Form{Fields: []Question{{Key: "q1", Type: "checkbox"}}}
	if err := badType.Validate(); err == nil {
		t.Fatalf("unknown question type must fail validation")
	}

	badOp := Form{Fields: []Question{
		{Key: "q1", Type: ShortText},
		{Key: "q2", Type: ShortText, Rules: []Rule{{TargetKey: "q1", Operator: "like", Value: "x"}}},
	}}
	if err := badOp.Validate(); err == nil {
		t.Fatalf("unknown operator must fail validation")
	}
}
