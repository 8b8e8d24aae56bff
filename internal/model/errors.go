package model

import "errors"

// ErrValidation wraps every record validation failure.
var ErrValidation = errors.New("validation error")
