package sources

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/jobfeed/internal/entities"
	"strings"
)

var postingValidator = validator.New()

// ValidatePostings rejects the whole batch when any posting lacks a valid link or
// title, or when a link appears twice.
func ValidatePostings(module string, postings []entities.Posting) error {
	seen := make(map[string]int, len(postings))

	for i, posting := range postings {
		if err := postingValidator.Struct(posting); err != nil {
			return fmt.Errorf("%w: %s posting #%d (%q): %s",
				ErrMalformedPosting, module, i, posting.Link, describeValidationError(err))
		}
		if first, ok := seen[posting.Link]; ok {
			return fmt.Errorf("%w: %s postings #%d and #%d share link %q",
				ErrMalformedPosting, module, first, i, posting.Link)
		}
		seen[posting.Link] = i
	}
	return nil
}

func describeValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	var parts []string
	for _, fieldErr := range validationErrors {
		parts = append(parts, fmt.Sprintf("field %s failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(parts, ", ")
}
