package index

import "errors"

// ErrMissingOutput is returned by fee derivation when an input's previous
// output is absent from the txo index. That only happens when blocks were
// connected out of order or the index is corrupt; it is fatal to the
// derivation and must not be retried blindly.
var ErrMissingOutput = errors.New("missing previous output")
