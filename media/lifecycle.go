package media

import (
	"fmt"

	"github.com/cppla/radiocms/models"
)

// NextToggleStatus is the archive toggle shared by every collection:
// READY and ARCHIVED swap, restoring always lands on READY so the item can be
// broadcast again. DRAFT and FAILED items can be archived; a PROCESSING item
// is still being written and cannot change.
func NextToggleStatus(cur models.MediaStatus) (models.MediaStatus, error) {
	switch cur {
	case models.StatusArchived:
		return models.StatusReady, nil
	case models.StatusReady, models.StatusDraft, models.StatusFailed:
		return models.StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: cannot toggle an item in %s", ErrConflict, cur)
	}
}

// Broadcastable reports whether an item in status s may be sent to the streamer.
func Broadcastable(s models.MediaStatus) bool {
	return s == models.StatusReady
}
