package forms

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxSlugLen   = 100
	defaultSlug  = "form"
	maxSlugProbe = 10000
)

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases title and joins its ASCII letter and digit runs with
// dashes.
func Slugify(title string) string {
	slug := reNonSlug.ReplaceAllString(strings.ToLower(title), "-")
	slug = cutToLen(strings.Trim(slug, "-"), maxSlugLen)
	if slug == "" {
		return defaultSlug
	}
	return slug
}

func cutToLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.Trim(s[:n], "-")
}

type slugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// uniqueSlug tries base, then base-1, base-2, ... until one is free.
func uniqueSlug(ctx context.Context, forms slugChecker, base string) (string, error) {
	candidate := base
	for i := 1; i <= maxSlugProbe; i++ {
		taken, err := forms.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		suffix := fmt.Sprintf("-%d", i)
		candidate = cutToLen(base, maxSlugLen-len(suffix)) + suffix
	}
	return "", errors.Errorf("no free slug for %q after %d attempts", base, maxSlugProbe)
}
