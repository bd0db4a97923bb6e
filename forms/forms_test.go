package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/store"
)

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name string
		in   model.FormInput
		want []string
	}{
		{
			name: "valid",
			in: model.FormInput{Title: "Survey", Questions: []model.Question{
				{Type: model.Text, Title: "Name"},
			}},
		},
		{
			name: "blank title",
			in:   model.FormInput{Title: "   "},
			want: []string{"Title is required and must be between 1-200 characters"},
		},
		{
			name: "long title and description",
			in:   model.FormInput{Title: strings.Repeat("t", 201), Description: strp(strings.Repeat("d", 1001))},
			want: []string{
				"Title is required and must be between 1-200 characters",
				"Description must be less than 1000 characters",
			},
		},
		{
			name: "every question problem is reported",
			in: model.FormInput{Title: "Survey", Questions: []model.Question{
				{Type: model.Text, Title: "ok"},
				{Type: model.Text},
				{Type: "slider", Title: strings.Repeat("q", 501)},
				{Title: "no type"},
			}},
			want: []string{
				"Question 2: Type and title are required",
				"Question 3: Title must be less than 500 characters",
				"Question 3: Invalid question type",
				"Question 4: Type and title are required",
			},
		},
		{
			name: "unknown status",
			in:   model.FormInput{Title: "Survey", Status: "archived"},
			want: []string{"Status must be either draft or published"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateForm(tt.in)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			fe := fault.As(err)
			if fe.Kind != fault.KindValidation {
				t.Fatalf("expected validation fault, got %v", err)
			}
			if !reflect.DeepEqual(fe.Errors, tt.want) {
				t.Errorf("errors = %q, want %q", fe.Errors, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title, want string
	}{
		{"My Form!!", "my-form"},
		{"My Form??", "my-form"},
		{"  Customer   Feedback 2024 ", "customer-feedback-2024"},
		{"Café Menu", "caf-menu"},
		{"!!!", "form"},
		{"", "form"},
		{strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}
	for _, tt := range tests {
		if got := Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

type fixture struct {
	svc   *Service
	store *store.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{store: store.New(db), now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.svc = NewService(f.store.Forms)
	f.svc.Now = func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	return f
}

func (f *fixture) user(t *testing.T, id string, plan model.Plan) access.Identity {
	t.Helper()
	u := &model.User{ID: id, Email: id + "@example.com", Name: id, PasswordHash: "x", Plan: plan, IsActive: true, CreatedAt: f.now}
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return access.IdentityOf(u)
}

func strp(s string) *string { return &s }

func (f *fixture) create(t *testing.T, id access.Identity, in model.FormInput) *model.Form {
	t.Helper()
	form, err := f.svc.CreateForm(context.Background(), id, in)
	if err != nil {
		t.Fatalf("create form: %v", err)
	}
	return form
}

func TestCreateForm_UniqueSlugs(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", model.Pro)

	first := f.create(t, alice, model.FormInput{Title: "My Form!!"})
	second := f.create(t, alice, model.FormInput{Title: "My Form??"})
	third := f.create(t, alice, model.FormInput{Title: "my form"})

	got := []string{first.Slug, second.Slug, third.Slug}
	want := []string{"my-form", "my-form-1", "my-form-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slugs = %v, want %v", got, want)
	}
}

func TestCreateForm_Defaults(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", model.Free)

	form := f.create(t, alice, model.FormInput{
		Title:    "Survey",
		Settings: json.RawMessage(`{"collectEmail":true}`),
		Questions: []model.Question{
			{Type: model.Text, Title: "Name"},
			{ID: "keep", Type: model.Email, Title: "Mail"},
		},
	})

	if form.Status != model.Draft || form.PublishedAt != nil {
		t.Errorf("new forms start as unpublished drafts, got %s %v", form.Status, form.PublishedAt)
	}
	s := form.Settings
	if !s.IsPublic || !s.AllowMultipleSubmissions || !s.Notifications.OnSubmission || s.RequireAuth {
		t.Errorf("defaults not applied: %+v", s)
	}
	if !s.CollectEmail {
		t.Error("explicit settings should override defaults")
	}
	if form.Questions[0].ID == "" || form.Questions[1].ID != "keep" {
		t.Errorf("unexpected question ids %q, %q", form.Questions[0].ID, form.Questions[1].ID)
	}
	if form.Analytics != (model.Analytics{}) {
		t.Errorf("analytics must start at zero, got %+v", form.Analytics)
	}
}

func TestCreateForm_IgnoresStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", model.Free)

	tests := []struct {
		name   string
		status model.FormStatus
	}{
		{"published", model.Published},
		{"draft", model.Draft},
		{"omitted", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := f.create(t, alice, model.FormInput{Title: "Early " + tt.name, Status: tt.status})
			if form.Status != model.Draft || form.PublishedAt != nil {
				t.Errorf("created %s %v, want an unpublished draft", form.Status, form.PublishedAt)
			}
			stored, err := f.svc.GetForm(ctx, alice, form.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if stored.Status != model.Draft || stored.PublishedAt != nil {
				t.Errorf("stored %s %v, want an unpublished draft", stored.Status, stored.PublishedAt)
			}
			if _, err := f.svc.GetPublicForm(ctx, form.Slug); !fault.Is(err, fault.KindNotFound) {
				t.Errorf("a new form must not be public, got %v", err)
			}
		})
	}
}

func TestCreateForm_Rejections(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", model.Free)

	_, err := f.svc.CreateForm(context.Background(), alice, model.FormInput{
		Questions: []model.Question{{Type: "bogus", Title: "x"}},
	})
	if fe := fault.As(err); fe.Kind != fault.KindValidation || len(fe.Errors) != 2 {
		t.Errorf("expected two validation errors, got %v", err)
	}

	for i := 0; i < 3; i++ {
		f.create(t, alice, model.FormInput{Title: fmt.Sprintf("Form %d", i)})
	}
	_, err = f.svc.CreateForm(context.Background(), alice, model.FormInput{Title: "One too many"})
	if !fault.Is(err, fault.KindQuotaExceeded) {
		t.Errorf("expected quota exceeded on the fourth free form, got %v", err)
	}
}

func TestCreateForm_UnlimitedQuota(t *testing.T) {
	f := newFixture(t)
	boss := f.user(t, "boss", model.Enterprise)
	for i := 0; i < 60; i++ {
		f.create(t, boss, model.FormInput{Title: "Form"})
	}
}

func TestUpdateForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", model.Free)
	bob := f.user(t, "bob", model.Free)

	form := f.create(t, alice, model.FormInput{
		Title:       "Original",
		Description: strp("keep me"),
		HeaderImage: strp("h.png"),
		Questions:   []model.Question{{Type: model.Text, Title: "Name"}},
	})
	qid := form.Questions[0].ID
	if form.Description != "keep me" || form.HeaderImage != "h.png" {
		t.Fatalf("create dropped text fields: %q / %q", form.Description, form.HeaderImage)
	}

	_, err := f.svc.UpdateForm(ctx, bob, form.ID, model.FormInput{Title: "Hijack"})
	if !fault.Is(err, fault.KindForbidden) {
		t.Errorf("expected forbidden for another user, got %v", err)
	}
	_, err = f.svc.UpdateForm(ctx, alice, "missing", model.FormInput{Title: "x"})
	if !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	_, err = f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{Title: ""})
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	updated, err := f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{
		Title:  "Renamed",
		Status: model.Published,
		Questions: []model.Question{
			{ID: qid, Type: model.Text, Title: "Full name"},
			{Type: model.Number, Title: "Age"},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Slug != "original" {
		t.Errorf("slug must stay put when the title changes, got %q", updated.Slug)
	}
	if updated.PublishedAt == nil {
		t.Fatal("publishing should set publishedAt")
	}
	if !updated.UpdatedAt.After(form.UpdatedAt) {
		t.Error("updatedAt should move forward")
	}
	if updated.Questions[0].ID != qid || updated.Questions[1].ID == "" || updated.Questions[1].ID == qid {
		t.Errorf("unexpected question ids %q, %q", updated.Questions[0].ID, updated.Questions[1].ID)
	}
	publishedAt := *updated.PublishedAt

	again, err := f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{Title: "Renamed again", Status: model.Published})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !again.PublishedAt.Equal(publishedAt) {
		t.Errorf("publishedAt must only be set once, got %s then %s", publishedAt, again.PublishedAt)
	}
	if len(again.Questions) != 2 {
		t.Errorf("omitted questions should be kept, got %d", len(again.Questions))
	}
	if again.Description != "keep me" || again.HeaderImage != "h.png" {
		t.Errorf("omitted description and header should be kept, got %q / %q", again.Description, again.HeaderImage)
	}

	cleared, err := f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{Title: "Renamed again", Description: strp("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cleared.Description != "" || cleared.HeaderImage != "h.png" {
		t.Errorf("an explicit empty description should clear only it, got %q / %q", cleared.Description, cleared.HeaderImage)
	}

	stored, err := f.svc.GetForm(ctx, alice, form.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Title != "Renamed again" || stored.Slug != "original" {
		t.Errorf("unexpected stored form %q / %q", stored.Title, stored.Slug)
	}
}

func TestDeleteForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", model.Free)
	bob := f.user(t, "bob", model.Free)
	form := f.create(t, alice, model.FormInput{Title: "Doomed"})

	if err := f.svc.DeleteForm(ctx, bob, form.ID); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := f.svc.DeleteForm(ctx, alice, form.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetForm(ctx, alice, form.ID); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestListForms_OwnerIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", model.Pro)
	bob := f.user(t, "bob", model.Pro)
	for i := 0; i < 3; i++ {
		f.create(t, alice, model.FormInput{Title: "Alice form"})
	}
	f.create(t, bob, model.FormInput{Title: "Bob form"})

	page, err := f.svc.ListForms(ctx, alice, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("expected 3 forms, got %d", page.Total)
	}
	for _, form := range page.Items {
		if form.UserID != alice.UserID {
			t.Errorf("listed a form owned by %s", form.UserID)
		}
	}
}

func TestGetPublicForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", model.Free)

	form := f.create(t, alice, model.FormInput{Title: "Launch"})

	if _, err := f.svc.GetPublicForm(ctx, form.Slug); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("drafts must look missing, got %v", err)
	}
	if stored, _ := f.svc.GetForm(ctx, alice, form.ID); stored.Analytics.TotalViews != 0 {
		t.Errorf("a refused read must not count a view, got %d", stored.Analytics.TotalViews)
	}

	if _, err := f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{Title: "Launch", Status: model.Published}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	public, err := f.svc.GetPublicForm(ctx, form.Slug)
	if err != nil {
		t.Fatalf("public read: %v", err)
	}
	if public.ID != form.ID || public.Title != "Launch" || !public.Settings.IsPublic {
		t.Errorf("unexpected public form %+v", public)
	}
	if _, err := f.svc.GetPublicForm(ctx, form.ID); err != nil {
		t.Fatalf("lookup by id should fall back: %v", err)
	}

	stored, err := f.svc.GetForm(ctx, alice, form.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Analytics.TotalViews != 2 {
		t.Errorf("expected exactly one view per read, got %d", stored.Analytics.TotalViews)
	}

	_, err = f.svc.UpdateForm(ctx, alice, form.ID, model.FormInput{
		Title:    "Launch",
		Settings: json.RawMessage(`{"isPublic":false}`),
	})
	if err != nil {
		t.Fatalf("make private: %v", err)
	}
	if _, err := f.svc.GetPublicForm(ctx, form.Slug); !fault.Is(err, fault.KindForbidden) {
		t.Errorf("private forms are forbidden, got %v", err)
	}
	if _, err := f.svc.GetPublicForm(ctx, form.ID); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("a private form looked up by id must look missing, got %v", err)
	}
	if stored, _ := f.svc.GetForm(ctx, alice, form.ID); stored.Analytics.TotalViews != 2 {
		t.Errorf("refused reads must not count views, got %d", stored.Analytics.TotalViews)
	}

	if _, err := f.svc.GetPublicForm(ctx, "nothing-here"); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
