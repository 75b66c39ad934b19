package agent

import "errors"

// ErrToolLoopExceeded reports that a turn hit the configured
// tool-calling round cap. This error is surfaced directly to the
// caller; it never triggers the fallback path and is never retried.
var ErrToolLoopExceeded = errors.New("tool-calling round limit exceeded")
