package model

import "errors"

// ErrNotFound reports that a requested record does not exist. Both repository
// backends return it so callers can branch without knowing the backend.
var ErrNotFound = errors.New("record not found")
