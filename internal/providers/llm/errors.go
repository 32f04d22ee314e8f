package llm

import "errors"

// ErrMissingCredential signals that a backend call was skipped because no API
// key is configured. Callers degrade to an empty result instead of failing.
var ErrMissingCredential = errors.New("missing api credential")
