package health

import "errors"

// ErrInvalidEndpoint is returned by Endpoint.Validate.
var ErrInvalidEndpoint = errors.New("health: invalid endpoint")
