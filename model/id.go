package model

import "github.com/gofrs/uuid"

// NewID returns a random identifier for forms, questions, submissions and
// users.
func NewID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
