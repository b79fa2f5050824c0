package history

import "errors"

// ErrBadTimestamp is returned when a stored timestamp cannot be parsed.
var ErrBadTimestamp = errors.New("history: invalid stored timestamp")
