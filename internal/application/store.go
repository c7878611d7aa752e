package application

import (
	"errors"
	"strings"

	"github.com/example/taskboard/internal/persistence"
)

// fromStore replaces a missing-row error from the store with the entity specific
// notFound error. Other errors pass through unchanged.
func fromStore(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return notFound
	}
	return err
}

// duplicateColumn returns the "table.column" that rejected a write as a duplicate.
func duplicateColumn(err error) (string, bool) {
	var cErr *persistence.ConstraintError
	if !errors.As(err, &cErr) || !errors.Is(cErr.Err, persistence.ErrDuplicate) {
		return "", false
	}
	return cErr.Constraint, true
}

// fromUserWrite maps uniqueness violations on the users table.
func fromUserWrite(err error) error {
	column, ok := duplicateColumn(err)
	if !ok {
		return fromStore(err, ErrUserNotFound)
	}
	switch {
	case strings.HasSuffix(column, ".email"):
		return ErrEmailTaken
	case strings.HasSuffix(column, ".name"):
		return ErrNameTaken
	}
	return newError(ErrConflict, "user already exists")
}

// uniqueIDs drops empty and repeated ids, keeping the first occurrence order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
