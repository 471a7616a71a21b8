package model

import (
	"fmt"
	"strings"
)

// Per-type answer behavior is a closed dispatch table keyed by
// question type: one entry holds how a raw submitted value becomes an
// Answer and how a present answer is validated against the question.
// Adding a question type means adding one entry here.
type typeHandler struct {
	normalize func(raw any) (Answer, error)
	validate  func(q Question, a Answer) error
}

var typeHandlers = map[QuestionType]typeHandler{
	ShortText: {
		normalize: normalizeSingle,
		validate:  validateAny,
	},
	LongText: {
		normalize: normalizeSingle,
		validate:  validateAny,
	},
	SingleSelect: {
		normalize: normalizeSingle,
		validate:  validateChoice,
	},
	MultiSelect: {
		normalize: normalizeMulti,
		validate:  validateChoices,
	},
	Attachment: {
		normalize: normalizeSingle,
		validate:  validateAny,
	},
}

// NormalizeAnswer shapes a raw decoded JSON value into the answer form
// the question type expects and validates it. Questions of unknown
// type reject every value.
func NormalizeAnswer(q Question, raw any) (Answer, error) {
	h, ok := typeHandlers[q.Type]
	if !ok {
		return Answer{}, fmt.Errorf("question %q has unknown type %q", q.Key, q.Type)
	}
	a, err := h.normalize(raw)
	if err != nil {
		return Answer{}, fmt.Errorf("question %q: %w", q.Key, err)
	}
	if err := h.validate(q, a); err != nil {
		return Answer{}, fmt.Errorf("question %q: %w", q.Key, err)
	}
	return a, nil
}

func normalizeSingle(raw any) (Answer, error) {
	s, ok := raw.(string)
	if !ok {
		return Answer{}, fmt.Errorf("expected a string, got %T", raw)
	}
	return SingleAnswer(s), nil
}

func normalizeMulti(raw any) (Answer, error) {
	switch vs := raw.(type) {
	case []string:
		return MultiAnswer(vs...), nil
	case []any:
		out := make([]string, len(vs))
		for i, v := range vs {
			s, ok := v.(string)
			if !ok {
				return Answer{}, fmt.Errorf("expected a list of strings, got %T element", v)
			}
			out[i] = s
		}
		return MultiAnswer(out...), nil
	}
	return Answer{}, fmt.Errorf("expected a list of strings, got %T", raw)
}

func validateAny(Question, Answer) error {
	return nil
}

func validateChoice(q Question, a Answer) error {
	if a.IsEmpty() {
		return nil
	}
	if !isOption(q, a.Value()) {
		return fmt.Errorf("%q is not one of the configured options", a.Value())
	}
	return nil
}

func validateChoices(q Question, a Answer) error {
	for _, v := range a.Values() {
		if !isOption(q, v) {
			return fmt.Errorf("%q is not one of the configured options", v)
		}
	}
	return nil
}

func isOption(q Question, v string) bool {
	for _, opt := range q.Options {
		if opt == v {
			return true
		}
	}
	return false
}

// RequiredError reports required questions that are visible but
// unanswered at submission time.
type RequiredError struct {
	Labels []string
}

func (e *RequiredError) Error() string {
	return "missing required answers: " + strings.Join(e.Labels, ", ")
}

// ValidateSubmission checks required-ness against the questions
// actually visible under the submitted answers. Hidden required
// questions never block a submission.
func ValidateSubmission(f Form, answers AnswerSet) error {
	var missing []string
	for _, q := range VisibleQuestions(f, answers) {
		if !q.Required {
			continue
		}
		a, ok := answers[q.Key]
		if !ok || a.IsEmpty() {
			missing = append(missing, q.Label)
		}
	}
	if len(missing) > 0 {
		return &RequiredError{Labels: missing}
	}
	return nil
}
