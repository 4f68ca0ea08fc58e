package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// UniqueRoomTriple is the constraint guarding one room per
// (farm_id, farmer_id, user_id). Creation races are arbitrated by this
// constraint rather than an application lock.
const UniqueRoomTriple = "uk_chat_rooms_triple"

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation. With an empty constraint it matches any unique violation;
// otherwise only the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	if string(pqErr.Code) != pqUniqueViolation {
		return false
	}

	if constraint == "" {
		return true
	}

	return pqErr.Constraint == constraint
}
