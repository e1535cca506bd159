package providers

import "errors"

// ErrNoCredential is returned when an outbound call is attempted without a
// bearer credential in the context.
var ErrNoCredential = errors.New("no bearer credential in context")
