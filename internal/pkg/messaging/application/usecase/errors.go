package usecase

import "errors"

// ErrPersistence indicates an infrastructure/repository failure inside a use
// case. A send that fails with it was not durably saved; the caller must
// surface that to the sender rather than drop the message silently.
var ErrPersistence = errors.New("messaging use case persistence error")
