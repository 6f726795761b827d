package storage

import "errors"

// ErrPolicyNotFound is returned when no policy record exists for a name.
var ErrPolicyNotFound = errors.New("policy not found")
