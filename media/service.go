package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/metrics"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

// Upload is one file handed to the pipeline. Open is called at most once.
type Upload struct {
	Filename     string
	Title        string
	DeclaredType string
	Open         func() (io.ReadCloser, error)
}

// ItemResult is the per-file outcome of a batch upload.
type ItemResult struct {
	OK       bool   `json:"ok"`
	Index    int    `json:"index"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	ID       uint   `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Service runs the ingestion pipeline and the lifecycle, broadcast and
// playlist operations. Every call takes the acting Principal explicitly.
type Service struct {
	db         *gorm.DB
	recorder   *Recorder
	storage    Storage
	gate       Gate
	transcoder Transcoder
	prober     Prober
	forwarder  *Forwarder
	publicBase string
	log        *zap.Logger
}

// NewService wires the pipeline from configuration.
func NewService(db *gorm.DB, cfg config.AppConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	transcodeTimeout := time.Duration(cfg.TranscodeTimeoutSec) * time.Second
	return &Service{
		db:       db,
		recorder: NewRecorder(db),
		storage: Storage{
			Root:      cfg.MediaRoot,
			URLPrefix: cfg.MediaURLPrefix,
			MaxBytes:  int64(cfg.MaxUploadMB) << 20,
		},
		gate:       Gate{TrustDeclared: cfg.TrustDeclaredType},
		transcoder: Transcoder{Path: cfg.FFmpegPath, Timeout: transcodeTimeout},
		prober:     Prober{Path: cfg.FFprobePath},
		forwarder:  NewForwarder(cfg.BroadcastBaseURL, cfg.BroadcastURLParam, time.Duration(cfg.BroadcastTimeoutSec)*time.Second),
		publicBase: cfg.PublicBaseURL,
		log:        log.Named("media"),
	}
}

// Storage exposes the writer for callers that store non-audio files.
func (s *Service) Storage() Storage { return s.storage }

// ResolveTitle picks a display title: the per-file name, then the shared
// prefix, then the file name without extension.
func ResolveTitle(provided, prefix, filename string) string {
	for _, candidate := range []string{provided, prefix, strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))} {
		if t := utils.SanitizeText(candidate); t != "" && t != "." {
			return t
		}
	}
	return "audio"
}

// ResolveOwner returns the owner for new items. Zero means the caller; only
// administrators may upload on behalf of someone else.
func (s *Service) ResolveOwner(ctx context.Context, p models.Principal, requested uint) (uint, error) {
	if requested == 0 || requested == p.UserID {
		return p.UserID, nil
	}
	if !p.IsAdmin() {
		return 0, fmt.Errorf("%w: cannot upload for another user", ErrForbidden)
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", requested).Count(&n).Error; err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, validationf("user %d does not exist", requested)
	}
	return requested, nil
}

func (s *Service) authorize(p models.Principal, c models.Collection) error {
	if !CanManage(p, c) {
		return fmt.Errorf("%w: %s requires one of %v", ErrForbidden, c, Roles(c))
	}
	return nil
}

// UploadBatch stores MP3 files one after another. A failing file yields an
// ok=false entry and never stops its siblings; the returned error is only for
// request-level problems.
func (s *Service) UploadBatch(ctx context.Context, p models.Principal, c models.Collection, owner uint, prefix string, uploads []Upload) ([]ItemResult, error) {
	if err := s.authorize(p, c); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, validationf("no files received")
	}
	owner, err := s.ResolveOwner(ctx, p, owner)
	if err != nil {
		return nil, err
	}

	results := make([]ItemResult, 0, len(uploads))
	for i, up := range uploads {
		item, err := s.storeOne(ctx, c, owner, prefix, up, false)
		if err != nil {
			s.log.Warn("batch item failed",
				zap.String("collection", string(c)),
				zap.Int("index", i),
				zap.String("filename", up.Filename),
				zap.Error(err))
			results = append(results, ItemResult{OK: false, Index: i, Error: err.Error(), Filename: up.Filename})
			continue
		}
		results = append(results, ItemResult{OK: true, Index: i, Title: item.Title, URL: item.URL, ID: item.ID})
	}
	return results, nil
}

// Ingest stores a single file, converting it to MP3 when it is not one already.
func (s *Service) Ingest(ctx context.Context, p models.Principal, c models.Collection, owner uint, up Upload) (*models.MediaItem, error) {
	if err := s.authorize(p, c); err != nil {
		return nil, err
	}
	owner, err := s.ResolveOwner(ctx, p, owner)
	if err != nil {
		return nil, err
	}
	return s.storeOne(ctx, c, owner, "", up, true)
}

func (s *Service) storeOne(ctx context.Context, c models.Collection, owner uint, prefix string, up Upload, allowTranscode bool) (*models.MediaItem, error) {
	if up.Open == nil {
		return nil, validationf("missing file")
	}
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	head, body, err := peek(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		metrics.RecordUpload(string(c), metrics.ResultRejected)
		return nil, validationf("empty file")
	}
	decision, err := s.gate.Check(up.DeclaredType, head, allowTranscode)
	if err != nil {
		metrics.RecordUpload(string(c), metrics.ResultRejected)
		return nil, err
	}

	title := ResolveTitle(up.Title, prefix, up.Filename)
	var item *models.MediaItem
	if decision == Transcode {
		item, err = s.transcode(ctx, c, owner, title, body)
	} else {
		item, err = s.storeDirect(ctx, c, owner, title, body)
	}
	if err != nil {
		metrics.RecordUpload(string(c), metrics.ResultFailed)
		return nil, err
	}
	if decision == Transcode {
		metrics.RecordUpload(string(c), metrics.ResultTranscoded)
	} else {
		metrics.RecordUpload(string(c), metrics.ResultStored)
	}
	s.log.Info("media stored",
		zap.String("collection", string(c)),
		zap.Uint("id", item.ID),
		zap.Uint("owner", owner),
		zap.String("url", item.URL),
		zap.String("path", decision.String()))
	return item, nil
}

func (s *Service) storeDirect(ctx context.Context, c models.Collection, owner uint, title string, body io.Reader) (*models.MediaItem, error) {
	st, err := s.storage.Write(string(c), title, ".mp3", body)
	if err != nil {
		return nil, err
	}
	item := &models.MediaItem{
		Collection: c,
		Title:      title,
		URL:        st.URL,
		FilePath:   &st.AbsPath,
		MimeType:   strPtr(TargetType),
		SizeBytes:  &st.Size,
		Duration:   s.duration(ctx, st.AbsPath),
		Status:     models.StatusReady,
		OwnerID:    owner,
	}
	if err := s.recorder.Record(ctx, item); err != nil {
		// no row will ever point at this file
		_ = s.storage.Remove(st.AbsPath)
		return nil, fmt.Errorf("record media: %w", err)
	}
	return item, nil
}

// transcode records a PROCESSING row, runs the encoder and settles the row on
// READY or FAILED.
func (s *Service) transcode(ctx context.Context, c models.Collection, owner uint, title string, body io.Reader) (*models.MediaItem, error) {
	st, err := s.storage.Reserve(string(c), title, ".mp3")
	if err != nil {
		return nil, err
	}
	item := &models.MediaItem{
		Collection: c,
		Title:      title,
		URL:        st.URL,
		FilePath:   &st.AbsPath,
		MimeType:   strPtr(TargetType),
		Status:     models.StatusProcessing,
		OwnerID:    owner,
	}
	if err := s.recorder.Record(ctx, item); err != nil {
		_ = s.storage.Remove(st.AbsPath)
		return nil, fmt.Errorf("record media: %w", err)
	}

	in := s.storage.Limit(body)
	start := time.Now()
	err = s.transcoder.ToMP3(ctx, in, st.AbsPath)
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	if in.Exceeded() {
		// ffmpeg may have encoded the truncated input successfully
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.storage.MaxBytes)
	}

	// settle the row even when the request context is gone
	settleCtx := context.WithoutCancel(ctx)
	if err != nil {
		// partial output is never served
		_ = s.storage.Remove(st.AbsPath)
		item.Status = models.StatusFailed
		if uerr := s.recorder.UpdateStatus(settleCtx, item.ID, models.StatusFailed); uerr != nil {
			s.log.Error("mark transcode failed", zap.Uint("id", item.ID), zap.Error(uerr))
		}
		return nil, err
	}

	if st, err = s.storage.Stat(st); err == nil {
		item.SizeBytes = &st.Size
	}
	item.Duration = s.duration(ctx, st.AbsPath)
	item.Status = models.StatusReady
	if err := s.recorder.Complete(settleCtx, item); err != nil {
		return nil, fmt.Errorf("record media: %w", err)
	}
	return item, nil
}

func (s *Service) duration(ctx context.Context, path string) *float64 {
	d, err := s.prober.Duration(ctx, path)
	if err != nil {
		s.log.Debug("probe duration", zap.String("path", path), zap.Error(err))
		return nil
	}
	return d
}

// List returns a page of items, newest first. Administrators see every
// owner's items, everyone else only their own.
func (s *Service) List(ctx context.Context, p models.Principal, c models.Collection, page, size int) ([]models.MediaItem, int64, error) {
	if err := s.authorize(p, c); err != nil {
		return nil, 0, err
	}
	f := ListFilter{Collection: c, Limit: size, Offset: (page - 1) * size}
	if !p.IsAdmin() {
		f.OwnerID = p.UserID
	}
	return s.recorder.List(ctx, f)
}

func (s *Service) loadOwned(ctx context.Context, p models.Principal, c models.Collection, id uint) (*models.MediaItem, error) {
	if err := s.authorize(p, c); err != nil {
		return nil, err
	}
	item, err := s.recorder.Find(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if !p.Owns(item.OwnerID) {
		return nil, fmt.Errorf("%w: item %d belongs to another user", ErrForbidden, id)
	}
	return item, nil
}

// SetStatus moves an item to any of the known statuses.
func (s *Service) SetStatus(ctx context.Context, p models.Principal, c models.Collection, id uint, raw string) (*models.MediaItem, error) {
	status, ok := models.ParseMediaStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !ok {
		return nil, validationf("invalid status %q", raw)
	}
	item, err := s.loadOwned(ctx, p, c, id)
	if err != nil {
		return nil, err
	}
	if item.Status == status {
		return item, nil
	}
	if err := s.checkPlayable(item, status); err != nil {
		return nil, err
	}
	if err := s.recorder.UpdateStatus(ctx, item.ID, status); err != nil {
		return nil, err
	}
	s.log.Info("media status set", zap.Uint("id", id), zap.String("from", string(item.Status)), zap.String("status", string(status)))
	item.Status = status
	return item, nil
}

// ToggleArchive archives a live item or restores an archived one to READY.
func (s *Service) ToggleArchive(ctx context.Context, p models.Principal, c models.Collection, id uint) (*models.MediaItem, error) {
	item, err := s.loadOwned(ctx, p, c, id)
	if err != nil {
		return nil, err
	}
	next, err := NextToggleStatus(item.Status)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlayable(item, next); err != nil {
		return nil, err
	}
	if err := s.recorder.UpdateStatus(ctx, item.ID, next); err != nil {
		return nil, err
	}
	s.log.Info("media archive toggled", zap.Uint("id", id), zap.String("status", string(next)))
	item.Status = next
	return item, nil
}

// checkPlayable refuses READY for an item whose file is gone, such as the
// leftover row of a failed transcode.
func (s *Service) checkPlayable(item *models.MediaItem, next models.MediaStatus) error {
	if next != models.StatusReady {
		return nil
	}
	if item.FilePath == nil || !s.storage.Exists(*item.FilePath) {
		return fmt.Errorf("%w: item %d has no stored file", ErrConflict, item.ID)
	}
	return nil
}

// Delete removes the backing file, ignoring unlink failures, then the row.
func (s *Service) Delete(ctx context.Context, p models.Principal, c models.Collection, id uint) error {
	item, err := s.loadOwned(ctx, p, c, id)
	if err != nil {
		return err
	}
	if item.FilePath != nil {
		if err := s.storage.Remove(*item.FilePath); err != nil {
			s.log.Warn("unlink media file", zap.Uint("id", id), zap.String("path", *item.FilePath), zap.Error(err))
		}
	}
	if err := s.recorder.Delete(ctx, item.ID); err != nil {
		return err
	}
	s.log.Info("media deleted", zap.Uint("id", id), zap.String("collection", string(c)))
	return nil
}

// BroadcastURL forwards an arbitrary audio URL to the streaming service.
func (s *Service) BroadcastURL(ctx context.Context, p models.Principal, audioURL string) (string, error) {
	if !p.HasAnyRole(models.RoleAdmin, models.RoleAnnouncer) {
		return "", fmt.Errorf("%w: broadcasting requires %s or %s", ErrForbidden, models.RoleAdmin, models.RoleAnnouncer)
	}
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return "", validationf("audioUrl is required")
	}
	abs := AbsoluteURL(s.publicBase, audioURL)
	return abs, s.forward(ctx, abs)
}

// Transmit forwards a READY item and records the broadcast on success. A
// failed forward leaves the row untouched.
func (s *Service) Transmit(ctx context.Context, p models.Principal, c models.Collection, id uint) (*models.MediaItem, string, error) {
	item, err := s.loadOwned(ctx, p, c, id)
	if err != nil {
		return nil, "", err
	}
	if !Broadcastable(item.Status) {
		return nil, "", fmt.Errorf("%w: item %d is %s, only READY items can be broadcast", ErrConflict, id, item.Status)
	}
	abs := AbsoluteURL(s.publicBase, item.URL)
	if err := s.forward(ctx, abs); err != nil {
		return nil, abs, err
	}

	now := time.Now()
	if err := s.recorder.MarkBroadcast(ctx, item.ID, now); err != nil {
		s.log.Error("record broadcast", zap.Uint("id", id), zap.Error(err))
	} else {
		item.LastBroadcastAt = &now
		item.BroadcastCount++
	}
	return item, abs, nil
}

func (s *Service) forward(ctx context.Context, abs string) error {
	err := s.forwarder.Forward(ctx, abs)
	metrics.RecordBroadcast(err == nil)
	if err != nil {
		var uerr *UpstreamError
		if errors.As(err, &uerr) {
			s.log.Warn("broadcast rejected", zap.String("url", abs), zap.Int("upstream_status", uerr.StatusCode), zap.String("detail", uerr.Detail))
		}
		return err
	}
	s.log.Info("broadcast forwarded", zap.String("url", abs))
	return nil
}

// Playlist lists READY items newest first as playlist tracks with absolute
// URLs. ownerID zero means every owner.
func (s *Service) Playlist(ctx context.Context, c models.Collection, ownerID uint, limit int, shuffle bool) ([]Track, error) {
	items, _, err := s.recorder.List(ctx, ListFilter{
		Collection: c,
		OwnerID:    ownerID,
		Status:     models.StatusReady,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	tracks := make([]Track, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, Track{Title: it.Title, URL: AbsoluteURL(s.publicBase, it.URL), Duration: it.Duration})
	}
	if shuffle {
		rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
	}
	return tracks, nil
}

// peek reads the first SniffLen bytes and returns them with a reader that
// replays them ahead of the rest.
func peek(r io.Reader) ([]byte, io.Reader, error) {
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	return head, io.MultiReader(bytes.NewReader(head), r), nil
}

func strPtr(s string) *string { return &s }
