package model

import (
	"github.com/goccy/go-json"
)

type QuestionType string

const (
	Categorize     QuestionType = "categorize"
	Cloze          QuestionType = "cloze"
	Comprehension  QuestionType = "comprehension"
	MultipleChoice QuestionType = "multiple-choice"
	Text           QuestionType = "text"
	Email          QuestionType = "email"
	Number         QuestionType = "number"
	Date           QuestionType = "date"
	FileUpload     QuestionType = "file-upload"
)

// QuestionTypes is the closed set of types a form may contain.
var QuestionTypes = []QuestionType{
	Categorize, Cloze, Comprehension, MultipleChoice,
	Text, Email, Number, Date, FileUpload,
}

func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Validation struct {
	Required bool `json:"required"`
}

// Question is a tagged variant: Type selects which Payload is carried.
// Unknown types decode with a nil Payload.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image,omitempty"`
	Validation  Validation   `json:"validation"`
	Payload     Payload      `json:"-"`
}

func (q Question) Kind() QuestionType {
	return q.Type
}

type Payload interface {
	payload()
}

type CategorizePayload struct {
	Options    []string `json:"options"`
	Categories []string `json:"categories"`
}

type ClozePayload struct {
	// Text marks each blank with ___
	Text   string   `json:"text"`
	Blanks []string `json:"blanks"`
}

type SubQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
}

type ComprehensionPayload struct {
	Passage   string        `json:"passage"`
	Questions []SubQuestion `json:"questions"`
}

type ChoicePayload struct {
	Options  []string `json:"options"`
	Multiple bool     `json:"multiple,omitempty"`
}

// FieldPayload serves text, email, number and date questions.
type FieldPayload struct {
	Placeholder string `json:"placeholder,omitempty"`
}

type FileUploadPayload struct {
	Accept  []string `json:"accept,omitempty"`
	MaxSize int64    `json:"maxSize,omitempty"`
}

func (*CategorizePayload) payload()    {}
func (*ClozePayload) payload()         {}
func (*ComprehensionPayload) payload() {}
func (*ChoicePayload) payload()        {}
func (*FieldPayload) payload()         {}
func (*FileUploadPayload) payload()    {}

// NewPayload returns an empty payload for t, or nil when t is not a known type.
func NewPayload(t QuestionType) Payload {
	switch t {
	case Categorize:
		return &CategorizePayload{}
	case Cloze:
		return &ClozePayload{}
	case Comprehension:
		return &ComprehensionPayload{}
	case MultipleChoice:
		return &ChoicePayload{}
	case Text, Email, Number, Date:
		return &FieldPayload{}
	case FileUpload:
		return &FileUploadPayload{}
	}
	return nil
}

// Options lists the choices a respondent may pick from, for the types that
// declare any.
func (q Question) Options() (opts []string, ok bool) {
	switch p := q.Payload.(type) {
	case *CategorizePayload:
		return p.Options, true
	case *ChoicePayload:
		return p.Options, true
	}
	return nil, false
}

type questionHeader Question

func (q *Question) UnmarshalJSON(data []byte) error {
	var h questionHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	*q = Question(h)

	q.Payload = NewPayload(q.Type)
	if q.Payload == nil {
		return nil
	}
	return json.Unmarshal(data, q.Payload)
}

func (q Question) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(questionHeader(q))
	if err != nil || q.Payload == nil {
		return head, err
	}
	body, err := json.Marshal(q.Payload)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err = json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if err = json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
