package deck

import "errors"

var (
	// ErrCardNotFound is returned when a front-text key does not match any
	// card in the addressed set.
	ErrCardNotFound = errors.New("card not found")

	// ErrDuplicateCard is returned when adding a card whose front already
	// exists in the set.
	ErrDuplicateCard = errors.New("card already exists")

	// ErrSetNotFound is returned by storage lookups for an unknown set.
	ErrSetNotFound = errors.New("vocabulary set not found")
)
