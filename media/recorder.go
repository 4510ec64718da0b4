package media

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/radiocms/models"
)

// Recorder owns the media_items table.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts item as a new row. Each call creates a row; there is no upsert.
func (r *Recorder) Record(ctx context.Context, item *models.MediaItem) error {
	if item.ID != 0 {
		return validationf("item already has id %d", item.ID)
	}
	if item.Status == "" {
		item.Status = models.StatusDraft
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// Find loads one item of collection c.
func (r *Recorder) Find(ctx context.Context, c models.Collection, id uint) (*models.MediaItem, error) {
	var item models.MediaItem
	err := r.db.WithContext(ctx).Where("collection = ?", c).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListFilter narrows List and Playable queries.
type ListFilter struct {
	Collection models.Collection
	OwnerID    uint // zero means any owner
	Status     models.MediaStatus
	Limit      int
	Offset     int
}

// List returns items newest first.
func (r *Recorder) List(ctx context.Context, f ListFilter) ([]models.MediaItem, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.MediaItem{}).Where("collection = ?", f.Collection)
	if f.OwnerID != 0 {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := []models.MediaItem{}
	q = q.Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateStatus sets the status of an existing row.
func (r *Recorder) UpdateStatus(ctx context.Context, id uint, status models.MediaStatus) error {
	res := r.db.WithContext(ctx).Model(&models.MediaItem{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete fills in the file facts of a row created before its file existed.
func (r *Recorder) Complete(ctx context.Context, item *models.MediaItem) error {
	return r.db.WithContext(ctx).Model(item).Select("status", "size_bytes", "duration", "mime_type").Updates(item).Error
}

// MarkBroadcast records a successful hand-off to the streaming service.
func (r *Recorder) MarkBroadcast(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MediaItem{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_broadcast_at": at,
		"broadcast_count":   gorm.Expr("broadcast_count + 1"),
	}).Error
}

// Delete removes the row.
func (r *Recorder) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.MediaItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
