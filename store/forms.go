package store

import (
	"context"
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

type FormStore struct {
	db *sqlx.DB
}

type formRow struct {
	ID                string        `db:"id"`
	Slug              string        `db:"slug"`
	UserID            string        `db:"user_id"`
	Title             string        `db:"title"`
	Description       string        `db:"description"`
	HeaderImage       string        `db:"header_image"`
	Status            string        `db:"status"`
	Settings          string        `db:"settings"`
	Questions         string        `db:"questions"`
	TotalViews        int           `db:"total_views"`
	TotalSubmissions  int           `db:"total_submissions"`
	AvgCompletionTime float64       `db:"avg_completion_time"`
	CreatedAt         int64         `db:"created_at"`
	UpdatedAt         int64         `db:"updated_at"`
	PublishedAt       sql.NullInt64 `db:"published_at"`
}

const selectForm = `
SELECT f.id, f.slug, f.user_id, f.title, f.description, f.header_image, f.status,
       f.settings, f.questions, f.total_views, f.total_submissions,
       (SELECT COALESCE(AVG(s.total_time), 0) FROM submissions s WHERE s.form_id = f.id) AS avg_completion_time,
       f.created_at, f.updated_at, f.published_at
  FROM forms f`

func newFormRow(f *model.Form) (row formRow, err error) {
	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return row, errors.Wrap(err, "encode settings")
	}
	questions := f.Questions
	if questions == nil {
		questions = []model.Question{}
	}
	qs, err := json.Marshal(questions)
	if err != nil {
		return row, errors.Wrap(err, "encode questions")
	}

	return formRow{
		ID:               f.ID,
		Slug:             f.Slug,
		UserID:           f.UserID,
		Title:            f.Title,
		Description:      f.Description,
		HeaderImage:      f.HeaderImage,
		Status:           string(f.Status),
		Settings:         string(settings),
		Questions:        string(qs),
		TotalViews:       f.Analytics.TotalViews,
		TotalSubmissions: f.Analytics.TotalSubmissions,
		CreatedAt:        toMillis(f.CreatedAt),
		UpdatedAt:        toMillis(f.UpdatedAt),
		PublishedAt:      toNullMillis(f.PublishedAt),
	}, nil
}

func (row formRow) toModel() (*model.Form, error) {
	f := &model.Form{
		ID:          row.ID,
		Slug:        row.Slug,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: row.Description,
		HeaderImage: row.HeaderImage,
		Status:      model.FormStatus(row.Status),
		Analytics: model.Analytics{
			TotalViews:        row.TotalViews,
			TotalSubmissions:  row.TotalSubmissions,
			AvgCompletionTime: row.AvgCompletionTime,
		}.WithConversionRate(),
		CreatedAt:   fromMillis(row.CreatedAt),
		UpdatedAt:   fromMillis(row.UpdatedAt),
		PublishedAt: fromNullMillis(row.PublishedAt),
	}
	if err := json.Unmarshal([]byte(row.Settings), &f.Settings); err != nil {
		return nil, errors.Wrapf(err, "decode settings of form %s", row.ID)
	}
	if err := json.Unmarshal([]byte(row.Questions), &f.Questions); err != nil {
		return nil, errors.Wrapf(err, "decode questions of form %s", row.ID)
	}
	return f, nil
}

func (s *FormStore) Insert(ctx context.Context, f *model.Form) error {
	row, err := newFormRow(f)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO forms (id, slug, user_id, title, description, header_image, status, settings, questions,
                   total_views, total_submissions, created_at, updated_at, published_at)
VALUES (:id, :slug, :user_id, :title, :description, :header_image, :status, :settings, :questions,
        :total_views, :total_submissions, :created_at, :updated_at, :published_at)`, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "insert form")
}

// Update writes the owner-editable fields of the form owned by f.UserID.
// Slug, owner and counters are left untouched.
func (s *FormStore) Update(ctx context.Context, f *model.Form) error {
	row, err := newFormRow(f)
	if err != nil {
		return err
	}

	res, err := s.db.NamedExecContext(ctx, `
UPDATE forms
   SET title = :title, description = :description, header_image = :header_image, status = :status,
       settings = :settings, questions = :questions, updated_at = :updated_at, published_at = :published_at
 WHERE id = :id AND user_id = :user_id`, row)
	if err != nil {
		return errors.Wrap(err, "update form")
	}
	return expectRow(res, "update form")
}

// Delete removes the form only when userID owns it.
func (s *FormStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM forms WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return errors.Wrap(err, "delete form")
	}
	return expectRow(res, "delete form")
}

func (s *FormStore) FindByID(ctx context.Context, id string) (*model.Form, error) {
	return s.get(ctx, selectForm+" WHERE f.id = ?", id)
}

func (s *FormStore) FindBySlug(ctx context.Context, slug string) (*model.Form, error) {
	return s.get(ctx, selectForm+" WHERE f.slug = ?", slug)
}

func (s *FormStore) get(ctx context.Context, query string, args ...any) (*model.Form, error) {
	var row formRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select form")
	}
	return row.toModel()
}

func (s *FormStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT count(*) FROM forms WHERE slug = ?", slug)
	return n > 0, errors.Wrap(err, "check slug")
}

func (s *FormStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT count(*) FROM forms WHERE user_id = ?", userID)
	return n, errors.Wrap(err, "count forms")
}

// ListByUser returns the user's forms, most recently updated first.
func (s *FormStore) ListByUser(ctx context.Context, userID string, page, limit int) (model.Page[model.Form], error) {
	total, err := s.CountByUser(ctx, userID)
	if err != nil {
		return model.Page[model.Form]{}, err
	}

	var rows []formRow
	err = s.db.SelectContext(ctx, &rows,
		selectForm+" WHERE f.user_id = ? ORDER BY f.updated_at DESC, f.id LIMIT ? OFFSET ?",
		userID, limit, offset(page, limit))
	if err != nil {
		return model.Page[model.Form]{}, errors.Wrap(err, "select forms")
	}

	forms := make([]model.Form, 0, len(rows))
	for _, row := range rows {
		f, err := row.toModel()
		if err != nil {
			return model.Page[model.Form]{}, err
		}
		forms = append(forms, *f)
	}
	return model.NewPage(forms, total, page, limit), nil
}

func (s *FormStore) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE forms SET total_views = total_views + 1 WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "increment views")
	}
	return expectRow(res, "increment views")
}

func expectRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
