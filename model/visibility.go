package model

import "strings"

// Visibility is a pure function of the form schema and the current
// answer set: nothing is stored, callers recompute on every answer
// change. A question with no rules is always visible; otherwise every
// rule must hold (AND — there is no OR mode).
//
// A rule never holds when its target question is itself hidden or
// unanswered: an invisible or unknown prerequisite cannot satisfy a
// condition, so a hidden question's stale answer cannot leak through a
// dependent rule. This also means notEquals is not the plain negation
// of equals for absent answers — both are false then.

// IsVisible reports whether the question with the given key should be
// shown under the given answers. Unknown keys are hidden.
func IsVisible(f Form, key string, answers AnswerSet) bool {
	return newEvaluation(f, answers).visible(key)
}

// VisibleQuestions filters the form's questions down to the currently
// visible ones, preserving form order. It is the list to render, the
// list to check required answers against, and the list submission
// sanitization derives from.
func VisibleQuestions(f Form, answers AnswerSet) []Question {
	ev := newEvaluation(f, answers)
	visible := make([]Question, 0, len(f.Fields))
	for _, q := range f.Fields {
		if ev.visible(q.Key) {
			visible = append(visible, q)
		}
	}
	return visible
}

// SanitizeAnswers restricts answers to the keys of currently visible
// questions. Answers for hidden questions, typically entered before a
// prerequisite changed, are dropped even if the client sent them.
func SanitizeAnswers(f Form, answers AnswerSet) AnswerSet {
	ev := newEvaluation(f, answers)
	clean := make(AnswerSet, len(answers))
	for _, q := range f.Fields {
		if a, ok := answers[q.Key]; ok && ev.visible(q.Key) {
			clean[q.Key] = a
		}
	}
	return clean
}

type evaluation struct {
	byKey   map[string]Question
	answers AnswerSet
	memo    map[string]bool
}

func newEvaluation(f Form, answers AnswerSet) *evaluation {
	byKey := make(map[string]Question, len(f.Fields))
	for _, q := range f.Fields {
		byKey[q.Key] = q
	}
	return &evaluation{
		byKey:   byKey,
		answers: answers,
		memo:    make(map[string]bool, len(f.Fields)),
	}
}

func (ev *evaluation) visible(key string) bool {
	if v, ok := ev.memo[key]; ok {
		return v
	}
	q, ok := ev.byKey[key]
	if !ok {
		return false
	}

	// Valid schemas only reference backwards, so recursion terminates.
	// Seed the memo so a malformed cycle resolves to hidden instead of
	// overflowing the stack.
	ev.memo[key] = false

	v := true
	for _, r := range q.Rules {
		if !ev.ruleHolds(r) {
			v = false
			break
		}
	}
	ev.memo[key] = v
	return v
}

func (ev *evaluation) ruleHolds(r Rule) bool {
	if !ev.visible(r.TargetKey) {
		return false
	}
	a, ok := ev.answers[r.TargetKey]
	if !ok {
		return false
	}

	switch r.Operator {
	case Equals:
		return answerEquals(a, r.Value)
	case NotEquals:
		return !answerEquals(a, r.Value)
	case Contains:
		return answerContains(a, r.Value)
	}
	return false
}

// answerEquals compares case-sensitively. A list answer only compares
// equal when it holds exactly one value and that value matches; a
// multi-valued answer is never equal (and therefore always notEquals).
func answerEquals(a Answer, v string) bool {
	if a.IsList() {
		vs := a.Values()
		return len(vs) == 1 && vs[0] == v
	}
	return a.Value() == v
}

// answerContains is a membership test for list answers and a substring
// test for single values.
func answerContains(a Answer, v string) bool {
	if a.IsList() {
		for _, got := range a.Values() {
			if got == v {
				return true
			}
		}
		return false
	}
	return strings.Contains(a.Value(), v)
}
