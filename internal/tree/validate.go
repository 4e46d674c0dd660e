package tree

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datatree/internal/apperr"
)

var errSlashInName = errors.New("must not contain " + Separator)

func noSeparator(value interface{}) error {
	s, _ := value.(string)
	if strings.Contains(s, Separator) {
		return errSlashInName
	}
	return nil
}

// cleanName trims a user supplied entry or folder name and validates it.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("name cannot be empty"),
		validation.By(noSeparator),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return name, nil
}

// cleanContent trims entry content and requires it to be non-empty.
func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if err := validation.Validate(content, validation.Required.Error("content cannot be empty")); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return content, nil
}

// cleanTerm trims a search term; there is no implicit match-everything.
func cleanTerm(term string) (string, error) {
	term = strings.TrimSpace(term)
	if err := validation.Validate(term, validation.Required.Error("search term cannot be empty")); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return term, nil
}
