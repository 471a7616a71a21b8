package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

func TestNormalizeAnswerSingle(t *testing.T) {
	t.Parallel()

	q := Question{Key: "q1", Type: ShortText}
	a, err := NormalizeAnswer(q, "hello")
	if err != nil {
		t.Fatalf("NormalizeAnswer: %v", err)
	}
	if a.IsList() || a.Value() != "hello" {
		t.Fatalf("expected single answer hello, got %+v", a)
	}

	if _, err := NormalizeAnswer(q, 42); err == nil {
		t.Fatalf("numbers are not valid text answers")
	}
	if _, err := NormalizeAnswer(q, []any{"a"}); err == nil {
		t.Fatalf("lists are not valid text answers")
	}
}

func TestNormalizeAnswerMulti(t *testing.T) {
	t.Parallel()

	q := Question{Key: "q1", Type: MultiSelect, Options: []string{"a", "b"}}

	// decoded JSON arrives as []any
	a, err := NormalizeAnswer(q, []any{"a", "b"})
	if err != nil {
		t.Fatalf("NormalizeAnswer: %v", err)
	}
	if !a.IsList() {
		t.Fatalf("multi-select answers must be lists")
	}
	if diff := cmp.Diff([]string{"a", "b"}, a.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	if _, err := NormalizeAnswer(q, "a"); err == nil {
		t.Fatalf("bare strings are not valid multi-select answers")
	}
	if _, err := NormalizeAnswer(q, []any{"a", 1}); err == nil {
		t.Fatalf("non-string elements must be rejected")
	}
}

func TestNormalizeAnswerChecksOptions(t *testing.T) {
	t.Parallel()

	single := Question{Key: "q1", Type: SingleSelect, Options: []string{"Yes", "No"}}
	if _, err := NormalizeAnswer(single, "Maybe"); err == nil {
		t.Fatalf("singleSelect must reject values outside its options")
	}
	if _, err := NormalizeAnswer(single, ""); err != nil {
		t.Fatalf("an empty selection is not an options violation: %v", err)
	}

	multi := Question{Key: "q2", Type: MultiSelect, Options: []string{"a"}}
	if _, err := NormalizeAnswer(multi, []any{"a", "z"}); err == nil {
		t.Fatalf("multiSelect must reject values outside its options")
	}
}

func TestValidateSubmissionRequired(t *testing.T) {
	t.Parallel()

	form := Form{Fields: []Question{
		{Key: "qa", Type: SingleSelect, Label: "A", Options: []string{"Yes", "No"}, Required: true},
		{Key: "qb", Type: ShortText, Label: "B", Required: true, Rules: []Rule{
			{TargetKey: "qa", Operator: Equals, Value: "Yes"},
		}},
	}}

	// hidden required question must not block submission
	err := ValidateSubmission(form, AnswerSet{"qa": SingleAnswer("No")})
	if err != nil {
		t.Fatalf("hidden required question blocked submission: %v", err)
	}

	// visible required question with no answer must
	err = ValidateSubmission(form, AnswerSet{"qa": SingleAnswer("Yes")})
	var reqErr *RequiredError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequiredError", err)
	}
	if diff := cmp.Diff([]string{"B"}, reqErr.Labels); diff != "" {
		t.Fatalf("missing labels mismatch (-want +got):\n%s", diff)
	}

	// an empty answer counts as missing
	err = ValidateSubmission(form, AnswerSet{"qa": SingleAnswer("Yes"), "qb": SingleAnswer("")})
	if err == nil || !strings.Contains(err.Error(), "B") {
		t.Fatalf("empty answers must count as missing, got %v", err)
	}

	err = ValidateSubmission(form, AnswerSet{"qa": SingleAnswer("Yes"), "qb": SingleAnswer("done")})
	if err != nil {
		t.Fatalf("complete submission must pass: %v", err)
	}
}

func TestAnswerJSON(t *testing.T) {
	t.Parallel()

	set := AnswerSet{
		"text":  SingleAnswer("hello"),
		"multi": MultiAnswer("a", "b"),
	}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded AnswerSet
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(set, decoded, cmp.AllowUnexported(Answer{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	var bad Answer
	if err := json.Unmarshal([]byte(`{"k":1}`), &bad); err == nil {
		t.Fatalf("objects are not valid answers")
	}
}
