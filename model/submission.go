package model

import "time"

const StatusCompleted = "completed"

type Submission struct {
	ID             string         `json:"id"`
	FormID         string         `json:"formId"`
	FormSlug       string         `json:"formSlug"`
	Responses      []Response     `json:"responses"`
	SubmitterInfo  SubmitterInfo  `json:"submitterInfo"`
	SubmissionTime SubmissionTime `json:"submissionTime"`
	Status         string         `json:"status"`
	IsRead         bool           `json:"isRead"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type Response struct {
	QuestionID    string       `json:"questionId"`
	QuestionType  QuestionType `json:"questionType"`
	QuestionTitle string       `json:"questionTitle"`
	Answer        any          `json:"answer"`
	Files         []string     `json:"files"`
}

type SubmitterInfo struct {
	Email     *string `json:"email"`
	IPAddress string  `json:"ipAddress"`
	UserAgent string  `json:"userAgent"`
}

type SubmissionTime struct {
	Started   *time.Time `json:"started,omitempty"`
	Completed time.Time  `json:"completed"`
	// TotalTime is in seconds, as reported by the respondent's client.
	TotalTime float64 `json:"totalTime"`
}

// SubmissionStats aggregates a form's stored submissions.
type SubmissionStats struct {
	TotalSubmissions  int     `json:"totalSubmissions"`
	AvgCompletionTime float64 `json:"avgCompletionTime"`
	TodaySubmissions  int     `json:"todaySubmissions"`
}
