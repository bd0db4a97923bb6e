package forms

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/model"
)

const (
	maxTitleLen         = 200
	maxDescriptionLen   = 1000
	maxQuestionTitleLen = 500
)

// ValidateForm collects every problem with in, not just the first one. The
// returned error is a validation fault listing them, or nil.
func ValidateForm(in model.FormInput) error {
	var merr *multierror.Error

	title := utf8.RuneCountInString(strings.TrimSpace(in.Title))
	if title < 1 || title > maxTitleLen {
		merr = multierror.Append(merr, errors.New("Title is required and must be between 1-200 characters"))
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxDescriptionLen {
		merr = multierror.Append(merr, errors.New("Description must be less than 1000 characters"))
	}
	switch in.Status {
	case "", model.Draft, model.Published:
	default:
		merr = multierror.Append(merr, errors.New("Status must be either draft or published"))
	}

	for i, q := range in.Questions {
		n := i + 1
		if q.Type == "" || q.Title == "" {
			merr = multierror.Append(merr, fmt.Errorf("Question %d: Type and title are required", n))
		}
		if utf8.RuneCountInString(q.Title) > maxQuestionTitleLen {
			merr = multierror.Append(merr, fmt.Errorf("Question %d: Title must be less than 500 characters", n))
		}
		if q.Type != "" && !q.Type.Valid() {
			merr = multierror.Append(merr, fmt.Errorf("Question %d: Invalid question type", n))
		}
	}

	if merr == nil {
		return nil
	}
	return fault.Validation(merr.Errors)
}
