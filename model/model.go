package model

import (
	"encoding/json"
	"time"
)

type FormStatus string

const (
	Draft     FormStatus = "draft"
	Published FormStatus = "published"
)

type Form struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	HeaderImage string     `json:"headerImage,omitempty"`
	Status      FormStatus `json:"status"`
	Settings    Settings   `json:"settings"`
	Questions   []Question `json:"questions"`
	Analytics   Analytics  `json:"analytics"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type Settings struct {
	IsPublic                 bool          `json:"isPublic"`
	RequireAuth              bool          `json:"requireAuth"`
	AllowMultipleSubmissions bool          `json:"allowMultipleSubmissions"`
	CollectEmail             bool          `json:"collectEmail"`
	Notifications            Notifications `json:"notifications"`
}

type Notifications struct {
	OnSubmission       bool     `json:"onSubmission"`
	EmailNotifications []string `json:"emailNotifications"`
}

// DefaultSettings are applied to newly created forms.
func DefaultSettings() Settings {
	return Settings{
		IsPublic:                 true,
		AllowMultipleSubmissions: true,
		Notifications: Notifications{
			OnSubmission:       true,
			EmailNotifications: []string{},
		},
	}
}

type Analytics struct {
	TotalViews        int     `json:"totalViews"`
	TotalSubmissions  int     `json:"totalSubmissions"`
	ConversionRate    float64 `json:"conversionRate"`
	AvgCompletionTime float64 `json:"avgCompletionTime"`
}

// WithConversionRate fills ConversionRate from the two counters.
func (a Analytics) WithConversionRate() Analytics {
	a.ConversionRate = 0
	if a.TotalViews > 0 {
		a.ConversionRate = float64(a.TotalSubmissions) / float64(a.TotalViews) * 100
	}
	return a
}

// FormInput is what an owner may write when creating or updating a form.
// Settings is kept raw so that it can be laid over the current settings key
// by key. A nil Description or HeaderImage leaves the stored value alone.
type FormInput struct {
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	HeaderImage *string         `json:"headerImage"`
	Status      FormStatus      `json:"status"`
	Settings    json.RawMessage `json:"settings"`
	Questions   []Question      `json:"questions"`
}

// PublicForm is what respondents see: no owner, analytics or notification
// settings.
type PublicForm struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	HeaderImage string         `json:"headerImage,omitempty"`
	Status      FormStatus     `json:"status"`
	Settings    PublicSettings `json:"settings"`
	Questions   []Question     `json:"questions"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
}

type PublicSettings struct {
	IsPublic                 bool `json:"isPublic"`
	RequireAuth              bool `json:"requireAuth"`
	AllowMultipleSubmissions bool `json:"allowMultipleSubmissions"`
	CollectEmail             bool `json:"collectEmail"`
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}
