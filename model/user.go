package model

import "time"

type Plan string

const (
	Free       Plan = "free"
	Pro        Plan = "pro"
	Enterprise Plan = "enterprise"
)

// Unlimited disables a limit.
const Unlimited = -1

const mb = 1024 * 1024

type Limits struct {
	MaxForms              int   `json:"maxForms"`
	MaxSubmissionsPerForm int   `json:"maxSubmissionsPerForm"`
	MaxFileUploadSize     int64 `json:"maxFileUploadSize"`
}

var planLimits = map[Plan]Limits{
	Free:       {MaxForms: 3, MaxSubmissionsPerForm: 100, MaxFileUploadSize: 5 * mb},
	Pro:        {MaxForms: 50, MaxSubmissionsPerForm: 5000, MaxFileUploadSize: 25 * mb},
	Enterprise: {MaxForms: Unlimited, MaxSubmissionsPerForm: Unlimited, MaxFileUploadSize: 100 * mb},
}

// LimitsForPlan falls back to the free plan for unknown plans.
func LimitsForPlan(plan Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[Free]
}

func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Plan         Plan       `json:"plan"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (u User) Limits() Limits {
	return LimitsForPlan(u.Plan)
}
