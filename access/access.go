// Package access decides who may see and change forms and their submissions.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/store"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Plan   model.Plan
	Limits model.Limits
}

func IdentityOf(u *model.User) Identity {
	return Identity{UserID: u.ID, Plan: u.Plan, Limits: u.Limits()}
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver turns the user id carried by a verified token into an Identity.
type Resolver struct {
	Users UserFinder
}

// Resolve fails with Unauthorized when the user is gone or deactivated.
func (r Resolver) Resolve(ctx context.Context, userID string) (Identity, error) {
	if userID == "" {
		return Identity{}, fault.Unauthorized("Access token required")
	}
	u, err := r.Users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, fault.Unauthorized("User not found or inactive")
	}
	if err != nil {
		return Identity{}, fault.Internal("resolve identity", err)
	}
	return IdentityOf(u), nil
}

// CanReadPublic lets anonymous visitors see published, public forms only.
// Drafts are indistinguishable from missing forms.
func CanReadPublic(form *model.Form) error {
	if form == nil || form.Status != model.Published {
		return fault.NotFound("Form not found or not available")
	}
	if !form.Settings.IsPublic {
		return fault.Forbidden("This form is private")
	}
	return nil
}

func RequireOwner(id Identity, form *model.Form) error {
	if form == nil {
		return fault.NotFound("Form not found")
	}
	if id.UserID == "" || id.UserID != form.UserID {
		return fault.Forbidden("Access denied")
	}
	return nil
}

// CheckFormQuota fails when owning one more form would exceed the plan.
func CheckFormQuota(id Identity, owned int) error {
	limit := id.Limits.MaxForms
	if limit != model.Unlimited && owned >= limit {
		return &fault.Error{
			Kind:    fault.KindQuotaExceeded,
			Message: fmt.Sprintf("You have reached your form limit of %d. Please upgrade your plan.", limit),
		}
	}
	return nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
