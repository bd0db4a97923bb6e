package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

type SubmissionStore struct {
	db *sqlx.DB
}

type submissionRow struct {
	ID             string         `db:"id"`
	FormID         string         `db:"form_id"`
	FormSlug       string         `db:"form_slug"`
	Responses      string         `db:"responses"`
	SubmitterEmail sql.NullString `db:"submitter_email"`
	IPAddress      string         `db:"ip_address"`
	UserAgent      string         `db:"user_agent"`
	StartedAt      sql.NullInt64  `db:"started_at"`
	CompletedAt    int64          `db:"completed_at"`
	TotalTime      float64        `db:"total_time"`
	Status         string         `db:"status"`
	IsRead         bool           `db:"is_read"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func newSubmissionRow(sub *model.Submission) (row submissionRow, err error) {
	responses := sub.Responses
	if responses == nil {
		responses = []model.Response{}
	}
	data, err := json.Marshal(responses)
	if err != nil {
		return row, errors.Wrap(err, "encode responses")
	}

	row = submissionRow{
		ID:          sub.ID,
		FormID:      sub.FormID,
		FormSlug:    sub.FormSlug,
		Responses:   string(data),
		IPAddress:   sub.SubmitterInfo.IPAddress,
		UserAgent:   sub.SubmitterInfo.UserAgent,
		StartedAt:   toNullMillis(sub.SubmissionTime.Started),
		CompletedAt: toMillis(sub.SubmissionTime.Completed),
		TotalTime:   sub.SubmissionTime.TotalTime,
		Status:      sub.Status,
		IsRead:      sub.IsRead,
		CreatedAt:   toMillis(sub.CreatedAt),
		UpdatedAt:   toMillis(sub.UpdatedAt),
	}
	if sub.SubmitterInfo.Email != nil {
		row.SubmitterEmail = sql.NullString{String: *sub.SubmitterInfo.Email, Valid: true}
	}
	return
}

func (row submissionRow) toModel() (*model.Submission, error) {
	sub := &model.Submission{
		ID:       row.ID,
		FormID:   row.FormID,
		FormSlug: row.FormSlug,
		SubmitterInfo: model.SubmitterInfo{
			IPAddress: row.IPAddress,
			UserAgent: row.UserAgent,
		},
		SubmissionTime: model.SubmissionTime{
			Started:   fromNullMillis(row.StartedAt),
			Completed: fromMillis(row.CompletedAt),
			TotalTime: row.TotalTime,
		},
		Status:    row.Status,
		IsRead:    row.IsRead,
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
	}
	if row.SubmitterEmail.Valid {
		email := row.SubmitterEmail.String
		sub.SubmitterInfo.Email = &email
	}
	if err := json.Unmarshal([]byte(row.Responses), &sub.Responses); err != nil {
		return nil, errors.Wrapf(err, "decode responses of submission %s", row.ID)
	}
	return sub, nil
}

// Create stores sub and counts it against its form in one transaction. The
// count only moves while it is below maxPerForm (model.Unlimited lifts the
// cap); otherwise nothing is written and ErrLimitReached is returned.
func (s *SubmissionStore) Create(ctx context.Context, sub *model.Submission, maxPerForm int) (err error) {
	row, err := newSubmissionRow(sub)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin submission")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.NamedExecContext(ctx, `
INSERT INTO submissions (id, form_id, form_slug, responses, submitter_email, ip_address, user_agent,
                         started_at, completed_at, total_time, status, is_read, created_at, updated_at)
VALUES (:id, :form_id, :form_slug, :responses, :submitter_email, :ip_address, :user_agent,
        :started_at, :completed_at, :total_time, :status, :is_read, :created_at, :updated_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert submission")
	}

	res, err := tx.ExecContext(ctx, `
UPDATE forms
   SET total_submissions = total_submissions + 1
 WHERE id = ? AND (? < 0 OR total_submissions < ?)`, sub.FormID, maxPerForm, maxPerForm)
	if err != nil {
		return errors.Wrap(err, "count submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "count submission")
	}
	if n == 0 {
		var exists int
		if err = tx.GetContext(ctx, &exists, "SELECT count(*) FROM forms WHERE id = ?", sub.FormID); err != nil {
			return errors.Wrap(err, "check form")
		}
		if exists == 0 {
			err = ErrNotFound
		} else {
			err = ErrLimitReached
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "commit submission")
}

// FindByFormID pages through a form's submissions, newest first.
func (s *SubmissionStore) FindByFormID(ctx context.Context, formID string, page, limit int) (model.Page[model.Submission], error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT count(*) FROM submissions WHERE form_id = ?", formID); err != nil {
		return model.Page[model.Submission]{}, errors.Wrap(err, "count submissions")
	}

	var rows []submissionRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM submissions WHERE form_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		formID, limit, offset(page, limit))
	if err != nil {
		return model.Page[model.Submission]{}, errors.Wrap(err, "select submissions")
	}

	subs := make([]model.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toModel()
		if err != nil {
			return model.Page[model.Submission]{}, err
		}
		subs = append(subs, *sub)
	}
	return model.NewPage(subs, total, page, limit), nil
}

// MarkAsRead is idempotent; marking an already read submission only moves
// its updatedAt.
func (s *SubmissionStore) MarkAsRead(ctx context.Context, formID, submissionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE submissions SET is_read = 1, updated_at = ? WHERE id = ? AND form_id = ?",
		toMillis(at), submissionID, formID)
	if err != nil {
		return errors.Wrap(err, "mark submission read")
	}
	return expectRow(res, "mark submission read")
}

// Stats counts every stored submission of the form and those created at or
// after since.
func (s *SubmissionStore) Stats(ctx context.Context, formID string, since time.Time) (stats model.SubmissionStats, err error) {
	var row struct {
		Total   int     `db:"total"`
		AvgTime float64 `db:"avg_time"`
		Today   int     `db:"today"`
	}
	err = s.db.GetContext(ctx, &row, `
SELECT count(*) AS total,
       COALESCE(AVG(total_time), 0) AS avg_time,
       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS today
  FROM submissions
 WHERE form_id = ?`, toMillis(since), formID)
	if err != nil {
		return stats, errors.Wrap(err, "submission stats")
	}

	stats.TotalSubmissions = row.Total
	stats.AvgCompletionTime = row.AvgTime
	stats.TodaySubmissions = row.Today
	return
}
