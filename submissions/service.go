package submissions

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/notify"
	"github.com/mbolis/quick-forms/store"
)

type FormFinder interface {
	FindByID(ctx context.Context, id string) (*model.Form, error)
}

type Repository interface {
	Create(ctx context.Context, sub *model.Submission, maxPerForm int) error
	FindByFormID(ctx context.Context, formID string, page, limit int) (model.Page[model.Submission], error)
	MarkAsRead(ctx context.Context, formID, submissionID string, at time.Time) error
	Stats(ctx context.Context, formID string, since time.Time) (model.SubmissionStats, error)
}

type Service struct {
	Forms       FormFinder
	Owners      access.UserFinder
	Submissions Repository
	Validator   Validator
	Publisher   notify.Publisher
	Now         func() time.Time
}

func NewService(forms FormFinder, owners access.UserFinder, subs Repository) *Service {
	return &Service{
		Forms:       forms,
		Owners:      owners,
		Submissions: subs,
		Publisher:   notify.Nop{},
		Now:         time.Now,
	}
}

// FormAnalytics combines a form's counters with statistics over its stored
// submissions. TotalSubmissions and ConversionRate both come from the
// counter.
type FormAnalytics struct {
	FormID            string    `json:"formId"`
	TotalViews        int       `json:"totalViews"`
	TotalSubmissions  int       `json:"totalSubmissions"`
	ConversionRate    float64   `json:"conversionRate"`
	AvgCompletionTime float64   `json:"avgCompletionTime"`
	TodaySubmissions  int       `json:"todaySubmissions"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// SubmitForm validates and stores a response to a form, returning the new
// submission id.
func (s *Service) SubmitForm(ctx context.Context, formID string, req Request, meta Meta) (string, error) {
	form, err := s.Forms.FindByID(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fault.NotFound("Form not found")
	}
	if err != nil {
		return "", fault.Internal("db.select_form", err)
	}

	limits, err := s.ownerLimits(ctx, form.UserID)
	if err != nil {
		return "", err
	}

	now := s.Now()
	sub, err := s.Validator.Validate(form, req, limits, meta, now)
	if err != nil {
		return "", err
	}
	if sub.ID, err = model.NewID(); err != nil {
		return "", fault.Internal("submission.new_id", err)
	}

	err = s.Submissions.Create(ctx, sub, limits.MaxSubmissionsPerForm)
	switch {
	case errors.Is(err, store.ErrLimitReached):
		return "", limitReached()
	case errors.Is(err, store.ErrNotFound):
		return "", fault.NotFound("Form not found")
	case err != nil:
		return "", fault.Internal("db.insert_submission", err)
	}

	if form.Settings.Notifications.OnSubmission {
		s.publish(ctx, form, sub)
	}
	return sub.ID, nil
}

// ownerLimits falls back to the free plan when the owner can no longer be
// loaded.
func (s *Service) ownerLimits(ctx context.Context, ownerID string) (model.Limits, error) {
	owner, err := s.Owners.FindByID(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return model.LimitsForPlan(model.Free), nil
	}
	if err != nil {
		return model.Limits{}, fault.Internal("db.select_owner", err)
	}
	return owner.Limits(), nil
}

func (s *Service) publish(ctx context.Context, form *model.Form, sub *model.Submission) {
	ev := notify.SubmissionEvent{
		SubmissionID: sub.ID,
		FormID:       form.ID,
		FormSlug:     form.Slug,
		FormTitle:    form.Title,
		OwnerID:      form.UserID,
		Recipients:   form.Settings.Notifications.EmailNotifications,
		SubmittedAt:  sub.CreatedAt,
	}
	if err := s.Publisher.PublishSubmission(ctx, ev); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"form_id":       form.ID,
			"submission_id": sub.ID,
		}).Warn("submission notification not sent")
	}
}

func (s *Service) ListSubmissions(ctx context.Context, id access.Identity, formID string, page, limit int) (model.Page[model.Submission], error) {
	if _, err := s.ownedForm(ctx, id, formID); err != nil {
		return model.Page[model.Submission]{}, err
	}

	subs, err := s.Submissions.FindByFormID(ctx, formID, page, limit)
	if err != nil {
		return subs, fault.Internal("db.list_submissions", err)
	}
	return subs, nil
}

func (s *Service) MarkAsRead(ctx context.Context, id access.Identity, formID, submissionID string) error {
	if _, err := s.ownedForm(ctx, id, formID); err != nil {
		return err
	}

	err := s.Submissions.MarkAsRead(ctx, formID, submissionID, s.Now())
	if errors.Is(err, store.ErrNotFound) {
		return fault.NotFound("Submission not found")
	}
	if err != nil {
		return fault.Internal("db.mark_submission_read", err)
	}
	return nil
}

func (s *Service) GetFormAnalytics(ctx context.Context, id access.Identity, formID string) (*FormAnalytics, error) {
	form, err := s.ownedForm(ctx, id, formID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	stats, err := s.Submissions.Stats(ctx, formID, midnight(now))
	if err != nil {
		return nil, fault.Internal("db.submission_stats", err)
	}

	counters := form.Analytics.WithConversionRate()
	return &FormAnalytics{
		FormID:            form.ID,
		TotalViews:        counters.TotalViews,
		TotalSubmissions:  counters.TotalSubmissions,
		ConversionRate:    counters.ConversionRate,
		AvgCompletionTime: stats.AvgCompletionTime,
		TodaySubmissions:  stats.TodaySubmissions,
		LastUpdated:       now,
	}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) ownedForm(ctx context.Context, id access.Identity, formID string) (*model.Form, error) {
	form, err := s.Forms.FindByID(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fault.NotFound("Form not found")
	}
	if err != nil {
		return nil, fault.Internal("db.select_form", err)
	}
	if err := access.RequireOwner(id, form); err != nil {
		return nil, err
	}
	return form, nil
}
