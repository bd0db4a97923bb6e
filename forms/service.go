package forms

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/store"
)

type Repository interface {
	Insert(ctx context.Context, f *model.Form) error
	Update(ctx context.Context, f *model.Form) error
	Delete(ctx context.Context, id, userID string) error
	FindByID(ctx context.Context, id string) (*model.Form, error)
	FindBySlug(ctx context.Context, slug string) (*model.Form, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string, page, limit int) (model.Page[model.Form], error)
	IncrementViews(ctx context.Context, id string) error
}

// insert attempts when another form grabs the probed slug first
const slugRetries = 3

type Service struct {
	Forms Repository
	Now   func() time.Time
}

func NewService(forms Repository) *Service {
	return &Service{Forms: forms, Now: time.Now}
}

func (s *Service) CreateForm(ctx context.Context, id access.Identity, in model.FormInput) (*model.Form, error) {
	if err := ValidateForm(in); err != nil {
		return nil, err
	}

	owned, err := s.Forms.CountByUser(ctx, id.UserID)
	if err != nil {
		return nil, fault.Internal("db.count_forms", err)
	}
	if err := access.CheckFormQuota(id, owned); err != nil {
		return nil, err
	}

	formID, err := model.NewID()
	if err != nil {
		return nil, fault.Internal("form.new_id", err)
	}
	now := s.Now()
	form := &model.Form{
		ID:        formID,
		UserID:    id.UserID,
		Title:     in.Title,
		Status:    model.Draft,
		Settings:  model.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyText(form, in)
	if err := s.apply(form, in); err != nil {
		return nil, err
	}

	base := Slugify(in.Title)
	for attempt := 0; ; attempt++ {
		form.Slug, err = uniqueSlug(ctx, s.Forms, base)
		if err != nil {
			return nil, fault.Internal("db.unique_slug", err)
		}

		err = s.Forms.Insert(ctx, form)
		if errors.Is(err, store.ErrDuplicate) && attempt < slugRetries {
			continue
		}
		if err != nil {
			return nil, fault.Internal("db.insert_form", err)
		}
		return form, nil
	}
}

func (s *Service) UpdateForm(ctx context.Context, id access.Identity, formID string, in model.FormInput) (*model.Form, error) {
	form, err := s.ownedForm(ctx, id, formID)
	if err != nil {
		return nil, err
	}
	if err := ValidateForm(in); err != nil {
		return nil, err
	}

	now := s.Now()
	form.Title = in.Title
	applyText(form, in)
	if in.Status != "" {
		form.Status = in.Status
	}
	if form.Status == model.Published && form.PublishedAt == nil {
		form.PublishedAt = &now
	}
	if err := s.apply(form, in); err != nil {
		return nil, err
	}
	form.UpdatedAt = now

	err = s.Forms.Update(ctx, form)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fault.NotFound("Form not found")
	}
	if err != nil {
		return nil, fault.Internal("db.update_form", err)
	}
	return form, nil
}

// applyText copies the optional text fields present in in. Absent fields
// keep their current value.
func applyText(form *model.Form, in model.FormInput) {
	if in.Description != nil {
		form.Description = *in.Description
	}
	if in.HeaderImage != nil {
		form.HeaderImage = *in.HeaderImage
	}
}

// apply copies settings and questions from in onto form. Status is left to
// the caller: new forms always start as drafts.
func (s *Service) apply(form *model.Form, in model.FormInput) error {
	if len(in.Settings) > 0 && string(in.Settings) != "null" {
		if err := json.Unmarshal(in.Settings, &form.Settings); err != nil {
			return fault.Validation([]error{errors.New("Settings must be an object")})
		}
	}
	if form.Settings.Notifications.EmailNotifications == nil {
		form.Settings.Notifications.EmailNotifications = []string{}
	}

	if in.Questions != nil {
		questions, err := assignQuestionIDs(in.Questions)
		if err != nil {
			return fault.Internal("question.new_id", err)
		}
		form.Questions = questions
	}
	if form.Questions == nil {
		form.Questions = []model.Question{}
	}
	return nil
}

// assignQuestionIDs keeps the ids questions already have and gives fresh
// ones to new questions and to repeats of an id already seen.
func assignQuestionIDs(questions []model.Question) ([]model.Question, error) {
	out := make([]model.Question, len(questions))
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" || seen[q.ID] {
			id, err := model.NewID()
			if err != nil {
				return nil, err
			}
			q.ID = id
		}
		seen[q.ID] = true
		out[i] = q
	}
	return out, nil
}

// DeleteForm keeps the form's submissions.
func (s *Service) DeleteForm(ctx context.Context, id access.Identity, formID string) error {
	if _, err := s.ownedForm(ctx, id, formID); err != nil {
		return err
	}

	err := s.Forms.Delete(ctx, formID, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return fault.NotFound("Form not found")
	}
	if err != nil {
		return fault.Internal("db.delete_form", err)
	}
	return nil
}

// GetForm is the owner's view of a form, whatever its status.
func (s *Service) GetForm(ctx context.Context, id access.Identity, formID string) (*model.Form, error) {
	return s.ownedForm(ctx, id, formID)
}

func (s *Service) ListForms(ctx context.Context, id access.Identity, page, limit int) (model.Page[model.Form], error) {
	forms, err := s.Forms.ListByUser(ctx, id.UserID, page, limit)
	if err != nil {
		return forms, fault.Internal("db.list_forms", err)
	}
	return forms, nil
}

// GetPublicForm looks the form up by slug, then by id, and counts one view
// for every form it hands out. Only the slug reveals that a private form
// exists; by id it looks missing.
func (s *Service) GetPublicForm(ctx context.Context, slugOrID string) (*model.PublicForm, error) {
	byID := false
	form, err := s.Forms.FindBySlug(ctx, slugOrID)
	if errors.Is(err, store.ErrNotFound) {
		byID = true
		form, err = s.Forms.FindByID(ctx, slugOrID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, access.CanReadPublic(nil)
	}
	if err != nil {
		return nil, fault.Internal("db.select_form", err)
	}
	if err := access.CanReadPublic(form); err != nil {
		if byID {
			return nil, access.CanReadPublic(nil)
		}
		return nil, err
	}

	if err := s.Forms.IncrementViews(ctx, form.ID); err != nil {
		return nil, fault.Internal("db.increment_views", err)
	}

	var public model.PublicForm
	if err := copier.Copy(&public, form); err != nil {
		return nil, fault.Internal("form.public_copy", err)
	}
	return &public, nil
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
