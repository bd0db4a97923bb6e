package submissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/model"
)

// Request is a respondent's submission as it arrives. Responses stays raw
// until the required answers have been checked.
type Request struct {
	Responses json.RawMessage `json:"responses"`
	Email     *string         `json:"email"`
	StartedAt *time.Time      `json:"startedAt"`
	TotalTime float64         `json:"totalTime"`
}

// Meta describes where a submission came from.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Validator turns a Request into a Submission ready to be stored.
//
// By default answers are taken as they come: only the presence of required
// answers is checked. Strict also treats empty answers as missing and
// refuses choices that the question does not offer.
type Validator struct {
	Strict bool
}

func (v Validator) Validate(form *model.Form, req Request, limits model.Limits, meta Meta, now time.Time) (*model.Submission, error) {
	if form.Status != model.Published {
		return nil, fault.New(fault.KindNotAcceptingSubmissions, "Form is not accepting submissions")
	}

	responses, shapeErr := decodeResponses(req.Responses)

	answered := make(map[string]model.Response, len(responses))
	for _, r := range responses {
		if v.Strict && isEmpty(r.Answer) {
			continue
		}
		answered[r.QuestionID] = r
	}
	var missing []fault.MissingAnswer
	for _, q := range form.Questions {
		if !q.Validation.Required {
			continue
		}
		if _, ok := answered[q.ID]; !ok {
			missing = append(missing, fault.MissingAnswer{QuestionID: q.ID, QuestionTitle: q.Title})
		}
	}
	if err := fault.MissingRequired(missing); err != nil {
		return nil, err
	}

	if shapeErr != nil {
		return nil, shapeErr
	}

	if v.Strict {
		if err := checkOptions(form, responses); err != nil {
			return nil, err
		}
	}

	limit := limits.MaxSubmissionsPerForm
	if limit != model.Unlimited && form.Analytics.TotalSubmissions >= limit {
		return nil, limitReached()
	}

	for i := range responses {
		if responses[i].Files == nil {
			responses[i].Files = []string{}
		}
	}
	return &model.Submission{
		FormID:    form.ID,
		FormSlug:  form.Slug,
		Responses: responses,
		SubmitterInfo: model.SubmitterInfo{
			Email:     req.Email,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		},
		SubmissionTime: model.SubmissionTime{
			Started:   req.StartedAt,
			Completed: now,
			TotalTime: req.TotalTime,
		},
		Status:    model.StatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func limitReached() error {
	return fault.New(fault.KindSubmissionLimitReached, "This form has reached its submission limit")
}

func decodeResponses(raw json.RawMessage) ([]model.Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fault.Malformed("Responses are required")
	}
	var responses []model.Response
	if err := json.Unmarshal(raw, &responses); err != nil {
		return nil, fault.Wrap(fault.KindMalformedRequest, "Responses must be a list of answers", err)
	}
	return responses, nil
}

func isEmpty(answer any) bool {
	switch a := answer.(type) {
	case nil:
		return true
	case string:
		return a == ""
	case []any:
		return len(a) == 0
	case map[string]any:
		return len(a) == 0
	}
	return false
}

// checkOptions refuses choice and categorize answers naming options the
// question does not declare. Categorize answers given as an object map
// options to categories.
func checkOptions(form *model.Form, responses []model.Response) error {
	questions := make(map[string]model.Question, len(form.Questions))
	for _, q := range form.Questions {
		questions[q.ID] = q
	}

	var merr *multierror.Error
	for _, r := range responses {
		q, ok := questions[r.QuestionID]
		if !ok {
			continue
		}
		options, ok := q.Options()
		if !ok {
			continue
		}

		picked := answerValues(r.Answer)
		payload, isCategorize := q.Payload.(*model.CategorizePayload)
		if m, isMap := r.Answer.(map[string]any); isMap && isCategorize {
			picked = picked[:0]
			for _, option := range sortedKeys(m) {
				picked = append(picked, option)
				if c, _ := m[option].(string); c != "" && !contains(payload.Categories, c) {
					merr = multierror.Append(merr, fmt.Errorf("Question %q: %q is not one of the declared categories", q.Title, c))
				}
			}
		}
		for _, p := range picked {
			if !contains(options, p) {
				merr = multierror.Append(merr, fmt.Errorf("Question %q: %q is not one of the declared options", q.Title, p))
			}
		}
	}

	if merr == nil {
		return nil
	}
	return fault.Validation(merr.Errors)
}

// answerValues lists the string values found in an answer.
func answerValues(answer any) []string {
	switch a := answer.(type) {
	case string:
		if a == "" {
			return nil
		}
		return []string{a}
	case []any:
		var out []string
		for _, v := range a {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
