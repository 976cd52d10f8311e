package factsheet

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	validTitle     = regexp.MustCompile(`^[a-z][\- a-z0-9]{4,49}$`)
	reservedTitles = []string{"create", "tags", "list", "edit", "view", "cardset", "cardbox", "stats"}
)

// ValidateTitle reports whether a box title is acceptable.
func ValidateTitle(title string) error {
	lower := strings.ToLower(title)
	for _, r := range reservedTitles {
		if strings.HasPrefix(lower, r) {
			return fmt.Errorf("%w: title %q cannot start with any of: %s", ErrInvalid, title, strings.Join(reservedTitles, ", "))
		}
	}
	if !validTitle.MatchString(lower) {
		return fmt.Errorf("%w: title %q must start with a letter, contain only letters, numbers, spaces and dashes, and be 5 to 50 characters long", ErrInvalid, title)
	}
	return nil
}

// Sides maps stored fields to front and back values. Back values equal to a
// front value are dropped.
func Sides(frontCols, backCols []string, fields map[string]string) (front, back []string) {
	seen := map[string]struct{}{}
	for _, col := range frontCols {
		if v, ok := fields[col]; ok {
			front = append(front, v)
			seen[v] = struct{}{}
		}
	}
	for _, col := range backCols {
		v, ok := fields[col]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		back = append(back, v)
	}
	return front, back
}
