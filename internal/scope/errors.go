package scope

import (
	"errors"
	"fmt"
	"time"
)

// ErrScopeClosed is returned when a turn is issued on a scope that is
// draining or closed.
var ErrScopeClosed = errors.New("scope: closed")

// AugmentationTimeoutWarning reports that the bounded barrier expired. The
// turn is still usable; augmentation keeps draining in the background.
type AugmentationTimeoutWarning struct {
	Timeout   time.Duration
	EntityID  string
	ProcessID string
}

func (w *AugmentationTimeoutWarning) Error() string {
	return fmt.Sprintf("memory augmentation for entity %s did not finish within %s; it continues in the background",
		w.EntityID, w.Timeout)
}

// IsTimeoutWarning reports whether err is, or wraps, an
// AugmentationTimeoutWarning.
func IsTimeoutWarning(err error) bool {
	var w *AugmentationTimeoutWarning
	return errors.As(err, &w)
}
