package eventstream

import "errors"

// ErrNilTimelineEvent indicates a nil timeline event payload was provided to
// a publisher.
var ErrNilTimelineEvent = errors.New("nil timeline event")
