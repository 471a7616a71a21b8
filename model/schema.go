package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

var (
	ErrUnsupportedFieldType = errors.New("unsupported field type")
	ErrInvalidRuleTarget    = errors.New("invalid rule target")
	ErrOrderViolation       = errors.New("order violation")
)

// SourceField is the slice of an Airtable field schema the model needs
// to derive a question: id, display name, native type and, for select
// types, the configured choices.
type SourceField struct {
	ID      string
	Name    string
	Type    string
	Choices []string
}

var fieldTypes = map[string]QuestionType{
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

// MapFieldType maps an Airtable native field type to a question type.
func MapFieldType(native string) (QuestionType, error) {
	t, ok := fieldTypes[native]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFieldType, native)
	}
	return t, nil
}

// NewQuestionKey generates a fresh question key. Keys are assigned
// once at creation and never reused, so rule references and stored
// answers stay stable across edits.
func NewQuestionKey() string {
	id := uuid.Must(uuid.NewV4())
	return "q" + strings.ReplaceAll(id.String(), "-", "")
}

// All schema operations are pure: they leave the receiver untouched
// and return an updated copy, so the builder can keep one owned Form
// value and treat every edit as a transformation.

// AddQuestion derives a question from an Airtable field and appends it
// to the form. A fresh question gets a unique key that is never reused,
// an empty rule list, and options copied from the field's choices.
// Fields with an unmapped native type fail with ErrUnsupportedFieldType
// and leave the form as it was.
func (f Form) AddQuestion(field SourceField) (Form, Question, error) {
	t, err := MapFieldType(field.Type)
	if err != nil {
		return f, Question{}, err
	}

	q := Question{
		Key:             NewQuestionKey(),
		AirtableFieldID: field.ID,
		Label:           field.Name,
		Type:            t,
		Options:         append([]string(nil), field.Choices...),
		Required:        false,
		Rules:           []Rule{},
	}

	fields := make([]Question, 0, len(f.Fields)+1)
	fields = append(fields, f.Fields...)
	fields = append(fields, q)
	f.Fields = fields
	return f, q, nil
}

// RemoveQuestion drops the question with the given key. Rules on other
// questions that target the removed key are dropped silently, so no
// dangling references survive. Unknown keys are a no-op.
func (f Form) RemoveQuestion(key string) Form {
	fields := make([]Question, 0, len(f.Fields))
	for _, q := range f.Fields {
		if q.Key == key {
			continue
		}
		if targetsKey(q.Rules, key) {
			kept := make([]Rule, 0, len(q.Rules))
			for _, r := range q.Rules {
				if r.TargetKey != key {
					kept = append(kept, r)
				}
			}
			q.Rules = kept
		}
		fields = append(fields, q)
	}
	f.Fields = fields
	return f
}

// RuleTargetCandidates returns the questions a rule on the given
// question may reference: exactly those appearing strictly before it
// in form order. This is the single source of truth for both the
// builder's target picker and AddRule validation.
func (f Form) RuleTargetCandidates(key string) []Question {
	for i, q := range f.Fields {
		if q.Key == key {
			return append([]Question(nil), f.Fields[:i]...)
		}
	}
	return nil
}

// AddRule appends a rule to the question with ownerKey. The rule's
// target must be one of RuleTargetCandidates(ownerKey); anything else,
// including self and forward references, fails with
// ErrInvalidRuleTarget.
func (f Form) AddRule(ownerKey string, r Rule) (Form, error) {
	if !validOperator(r.Operator) {
		return f, fmt.Errorf("%w: unknown operator %q", ErrInvalidRuleTarget, r.Operator)
	}

	found := false
	for _, c := range f.RuleTargetCandidates(ownerKey) {
		if c.Key == r.TargetKey {
			found = true
			break
		}
	}
	if !found {
		return f, fmt.Errorf("%w: %q", ErrInvalidRuleTarget, r.TargetKey)
	}

	fields := append([]Question(nil), f.Fields...)
	for i, q := range fields {
		if q.Key == ownerKey {
			rules := make([]Rule, 0, len(q.Rules)+1)
			rules = append(rules, q.Rules...)
			fields[i].Rules = append(rules, r)
			break
		}
	}
	f.Fields = fields
	return f, nil
}

// RemoveRule drops the rule at the given index from the question with
// ownerKey. Out-of-range indexes are a no-op.
func (f Form) RemoveRule(ownerKey string, index int) Form {
	fields := append([]Question(nil), f.Fields...)
	for i, q := range fields {
		if q.Key != ownerKey {
			continue
		}
		if index < 0 || index >= len(q.Rules) {
			break
		}
		rules := make([]Rule, 0, len(q.Rules)-1)
		rules = append(rules, q.Rules[:index]...)
		rules = append(rules, q.Rules[index+1:]...)
		fields[i].Rules = rules
		break
	}
	f.Fields = fields
	return f
}

// Reorder rearranges the form's questions to match newOrder, a
// permutation of the current question keys. It fails with
// ErrOrderViolation, leaving the form untouched, if newOrder is not
// such a permutation or if it would put any rule's target at or after
// its owning question.
func (f Form) Reorder(newOrder []string) (Form, error) {
	if len(newOrder) != len(f.Fields) {
		return f, fmt.Errorf("%w: order names %d of %d questions", ErrOrderViolation, len(newOrder), len(f.Fields))
	}

	byKey := make(map[string]Question, len(f.Fields))
	for _, q := range f.Fields {
		byKey[q.Key] = q
	}

	pos := make(map[string]int, len(newOrder))
	fields := make([]Question, 0, len(newOrder))
	for i, key := range newOrder {
		q, ok := byKey[key]
		if !ok {
			return f, fmt.Errorf("%w: unknown question %q", ErrOrderViolation, key)
		}
		if _, dup := pos[key]; dup {
			return f, fmt.Errorf("%w: duplicate question %q", ErrOrderViolation, key)
		}
		pos[key] = i
		fields = append(fields, q)
	}

	for _, q := range fields {
		for _, r := range q.Rules {
			if pos[r.TargetKey] >= pos[q.Key] {
				return f, fmt.Errorf("%w: target %q would no longer precede %q", ErrOrderViolation, r.TargetKey, q.Key)
			}
		}
	}

	f.Fields = fields
	return f, nil
}

// Validate checks the whole form schema: unique question keys, known
// question types and operators, and the backward-reference invariant
// on every rule. The server runs this on create and update so clients
// are not the sole enforcement point.
func (f Form) Validate() error {
	seen := make(map[string]int, len(f.Fields))
	for i, q := range f.Fields {
		if q.Key == "" {
			return fmt.Errorf("question %d: missing key", i)
		}
		if _, dup := seen[q.Key]; dup {
			return fmt.Errorf("question %d: duplicate key %q", i, q.Key)
		}
		if _, ok := typeHandlers[q.Type]; !ok {
			return fmt.Errorf("question %q: %w: %s", q.Key, ErrUnsupportedFieldType, q.Type)
		}
		seen[q.Key] = i

		for _, r := range q.Rules {
			if !validOperator(r.Operator) {
				return fmt.Errorf("question %q: %w: unknown operator %q", q.Key, ErrInvalidRuleTarget, r.Operator)
			}
			target, ok := seen[r.TargetKey]
			if !ok || target >= i {
				return fmt.Errorf("question %q: %w: %q", q.Key, ErrInvalidRuleTarget, r.TargetKey)
			}
		}
	}
	return nil
}

func targetsKey(rules []Rule, key string) bool {
	for _, r := range rules {
		if r.TargetKey == key {
			return true
		}
	}
	return false
}

func validOperator(op Operator) bool {
	switch op {
	case Equals, NotEquals, Contains:
		return true
	}
	return false
}
