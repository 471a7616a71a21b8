package model

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type QuestionType string

const (
	ShortText    QuestionType = "shortText"
	LongText     QuestionType = "longText"
	SingleSelect QuestionType = "singleSelect"
	MultiSelect  QuestionType = "multiSelect"
	Attachment   QuestionType = "attachment"
)

type Operator string

const (
	Equals    Operator = "equals"
	NotEquals Operator = "notEquals"
	Contains  Operator = "contains"
)

type Form struct {
	ID              int        `json:"id,omitempty"`
	Version         int        `json:"version,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AirtableBaseID  string     `json:"airtableBaseId"`
	AirtableTableID string     `json:"airtableTableId"`
	Fields          []Question `json:"fields"`
}

// Question order inside Form.Fields is significant: a rule may only
// reference a question that appears strictly earlier in the form.
type Question struct {
	Key             string       `json:"questionKey"`
	AirtableFieldID string       `json:"airtableFieldId"`
	Label           string       `json:"label"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options"`
	Required        bool         `json:"required"`
	Rules           []Rule       `json:"conditionalRules"`
}

// Rule is a single predicate over an earlier question's answer. All
// rules of a question must hold for it to be shown.
type Rule struct {
	TargetKey string   `json:"questionKey"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
}

type Response struct {
	ID               int       `json:"id"`
	SubmittedAt      time.Time `json:"submittedAt"`
	AirtableRecordID string    `json:"airtableRecordId,omitempty"`
	Answers          AnswerSet `json:"answers"`
}

// AnswerSet maps question keys to answers. A key that is absent means
// the question is unanswered.
type AnswerSet map[string]Answer

// Answer holds one respondent value: a single string for text, select
// and attachment questions, or a list of strings for multi-selects.
// The JSON form is a bare string or an array of strings accordingly.
type Answer struct {
	single string
	list   []string
	isList bool
}

func SingleAnswer(v string) Answer {
	return Answer{single: v}
}

func MultiAnswer(vs ...string) Answer {
	return Answer{list: vs, isList: true}
}

func (a Answer) IsList() bool {
	return a.isList
}

// Value returns the single answer string. Zero for list answers.
func (a Answer) Value() string {
	return a.single
}

// Values returns the selected values of a list answer. Nil otherwise.
func (a Answer) Values() []string {
	return a.list
}

func (a Answer) IsEmpty() bool {
	if a.isList {
		return len(a.list) == 0
	}
	return a.single == ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.isList {
		vs := a.list
		if vs == nil {
			vs = []string{}
		}
		return json.Marshal(vs)
	}
	return json.Marshal(a.single)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = SingleAnswer(s)
		return nil
	}
	var vs []string
	if err := json.Unmarshal(data, &vs); err == nil {
		*a = MultiAnswer(vs...)
		return nil
	}
	return fmt.Errorf("answer must be a string or a list of strings")
}
