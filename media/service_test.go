package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/models"
)

type serviceFixture struct {
	svc       *Service
	root      string
	admin     models.Principal
	announcer models.Principal
	streamer  *httptest.Server
	plays     *atomic.Int32
	failPlay  *atomic.Bool
}

func newServiceFixture(t *testing.T, ffmpeg string) *serviceFixture {
	t.Helper()
	db := openTestDB(t)
	admin := createUser(t, db, "admin", models.RoleAdmin)
	announcer := createUser(t, db, "locutor", models.RoleAnnouncer)

	plays := &atomic.Int32{}
	failPlay := &atomic.Bool{}
	streamer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failPlay.Load() {
			http.Error(w, "player offline", http.StatusBadGateway)
			return
		}
		plays.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(streamer.Close)

	root := t.TempDir()
	svc := NewService(db, config.AppConfig{
		MediaRoot:           root,
		MediaURLPrefix:      "/media",
		MaxUploadMB:         1,
		FFmpegPath:          ffmpeg,
		TranscodeTimeoutSec: 10,
		BroadcastBaseURL:    streamer.URL + "/play",
		BroadcastURLParam:   "url",
		BroadcastTimeoutSec: 2,
		PublicBaseURL:       "http://radio.test",
	}, nil)

	return &serviceFixture{
		svc:       svc,
		root:      root,
		admin:     admin.Principal(),
		announcer: announcer.Principal(),
		streamer:  streamer,
		plays:     plays,
		failPlay:  failPlay,
	}
}

func (f *serviceFixture) storeMP3(t *testing.T, c models.Collection, p models.Principal, title string) models.MediaItem {
	t.Helper()
	res, err := f.svc.UploadBatch(context.Background(), p, c, 0, "", []Upload{upload(title+".mp3", title, "audio/mpeg", mp3Bytes)})
	if err != nil {
		t.Fatalf("upload %s: %v", title, err)
	}
	if len(res) != 1 || !res[0].OK {
		t.Fatalf("upload %s: %+v", title, res)
	}
	item, err := f.svc.recorder.Find(context.Background(), c, res[0].ID)
	if err != nil {
		t.Fatalf("find %s: %v", title, err)
	}
	return *item
}

func TestUploadBatchPartialFailure(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	results, err := f.svc.UploadBatch(ctx, f.admin, models.CollectionMusic, 0, "Summer", []Upload{
		upload("one.mp3", "First", "audio/mpeg", mp3Bytes),
		upload("two.wav", "", "audio/wav", wavBytes),
		upload("three.mp3", "", "audio/mpeg", textBytes),
		upload("four.mp3", "", "audio/mpeg", mp3Bytes),
		upload("empty.mp3", "", "audio/mpeg", nil),
	})
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	wantOK := []bool{true, false, false, true, false}
	for i, r := range results {
		if r.Index != i || r.OK != wantOK[i] {
			t.Fatalf("result %d: %+v", i, r)
		}
	}
	if results[0].Title != "First" || results[3].Title != "Summer" {
		t.Fatalf("unexpected titles %q %q", results[0].Title, results[3].Title)
	}
	if results[1].Filename != "two.wav" || results[1].Error == "" {
		t.Fatalf("failed entry should carry filename and error: %+v", results[1])
	}

	for _, i := range []int{0, 3} {
		rel := strings.TrimPrefix(results[i].URL, "/media/")
		if _, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("stored file for %s missing: %v", results[i].URL, err)
		}
	}
	entries, _ := os.ReadDir(filepath.Join(f.root, "music"))
	if len(entries) != 2 {
		t.Fatalf("rejected files must not reach the disk, found %d files", len(entries))
	}
	_, total, err := f.svc.List(ctx, f.admin, models.CollectionMusic, 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", total, err)
	}
}

func TestUploadBatchAuthorization(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	ups := []Upload{upload("a.mp3", "", "audio/mpeg", mp3Bytes)}

	if _, err := f.svc.UploadBatch(ctx, f.announcer, models.CollectionMusic, 0, "", ups); !errors.Is(err, ErrForbidden) {
		t.Fatalf("announcer uploading music: expected forbidden, got %v", err)
	}
	if _, err := f.svc.UploadBatch(ctx, f.announcer, models.CollectionVoice, f.admin.UserID, "", ups); !errors.Is(err, ErrForbidden) {
		t.Fatalf("announcer uploading for admin: expected forbidden, got %v", err)
	}
	if _, err := f.svc.UploadBatch(ctx, f.admin, models.CollectionAds, 9999, "", ups); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown owner: expected validation error, got %v", err)
	}
	if _, err := f.svc.UploadBatch(ctx, f.admin, models.CollectionAds, 0, "", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty batch: expected validation error, got %v", err)
	}

	res, err := f.svc.UploadBatch(ctx, f.admin, models.CollectionVoice, f.announcer.UserID, "", ups)
	if err != nil || !res[0].OK {
		t.Fatalf("admin uploading for announcer: %+v %v", res, err)
	}
	items, _, _ := f.svc.List(ctx, f.announcer, models.CollectionVoice, 1, 10)
	if len(items) != 1 || items[0].OwnerID != f.announcer.UserID {
		t.Fatalf("announcer should own the uploaded item: %+v", items)
	}
}

func TestIngestTranscodes(t *testing.T) {
	f := newServiceFixture(t, fakeFFmpeg(t))

	item, err := f.svc.Ingest(context.Background(), f.announcer, models.CollectionVoice, 0, upload("take.webm", "Take one", "audio/webm;codecs=opus", wavBytes))
	if err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}
	if item.Status != models.StatusReady || item.SizeBytes == nil || *item.SizeBytes == 0 {
		t.Fatalf("unexpected item %+v", item)
	}
	if !strings.HasSuffix(item.URL, ".mp3") || *item.MimeType != TargetType {
		t.Fatalf("transcoded item should be mp3: %s %s", item.URL, *item.MimeType)
	}
	stored, err := f.svc.recorder.Find(context.Background(), models.CollectionVoice, item.ID)
	if err != nil || stored.Status != models.StatusReady {
		t.Fatalf("persisted status: %+v %v", stored, err)
	}
}

func TestIngestTranscodeFailure(t *testing.T) {
	f := newServiceFixture(t, failingFFmpeg(t))
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, f.announcer, models.CollectionVoice, 0, upload("take.webm", "", "audio/webm", wavBytes))
	var uerr *UpstreamError
	if !errors.As(err, &uerr) || uerr.Service != "ffmpeg" {
		t.Fatalf("expected ffmpeg UpstreamError, got %v", err)
	}
	items, _, err := f.svc.List(ctx, f.announcer, models.CollectionVoice, 1, 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one failed row, got %d (%v)", len(items), err)
	}
	if items[0].Status != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", items[0].Status)
	}
	if _, err := os.Stat(*items[0].FilePath); !os.IsNotExist(err) {
		t.Fatalf("partial output should be gone, stat err = %v", err)
	}
}

func TestIngestTranscodeRespectsSizeCap(t *testing.T) {
	f := newServiceFixture(t, fakeFFmpeg(t))
	ctx := context.Background()
	big := append(append([]byte{}, wavBytes...), make([]byte, 3<<20)...)

	_, err := f.svc.Ingest(ctx, f.announcer, models.CollectionVoice, 0, upload("long.wav", "Long take", "audio/wav", big))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for a 3 MiB upload with a 1 MiB cap, got %v", err)
	}
	items, _, err := f.svc.List(ctx, f.announcer, models.CollectionVoice, 1, 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one row, got %d (%v)", len(items), err)
	}
	if items[0].Status != models.StatusFailed {
		t.Fatalf("oversized upload should be FAILED, got %s", items[0].Status)
	}
	if _, err := os.Stat(*items[0].FilePath); !os.IsNotExist(err) {
		t.Fatalf("encoder output should be removed, stat err = %v", err)
	}

	small := append(append([]byte{}, wavBytes...), make([]byte, 512<<10)...)
	if _, err := f.svc.Ingest(ctx, f.announcer, models.CollectionVoice, 0, upload("short.wav", "", "audio/wav", small)); err != nil {
		t.Fatalf("upload under the cap: %v", err)
	}
}

func TestFailedItemCannotBecomeReady(t *testing.T) {
	f := newServiceFixture(t, failingFFmpeg(t))
	ctx := context.Background()

	if _, err := f.svc.Ingest(ctx, f.announcer, models.CollectionVoice, 0, upload("take.webm", "", "audio/webm", wavBytes)); err == nil {
		t.Fatal("expected transcode failure")
	}
	items, _, _ := f.svc.List(ctx, f.announcer, models.CollectionVoice, 1, 10)
	if len(items) != 1 {
		t.Fatalf("expected one row, got %d", len(items))
	}
	id := items[0].ID

	if _, err := f.svc.SetStatus(ctx, f.announcer, models.CollectionVoice, id, "READY"); !errors.Is(err, ErrConflict) {
		t.Fatalf("READY without a file: expected conflict, got %v", err)
	}
	got, err := f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, id)
	if err != nil || got.Status != models.StatusArchived {
		t.Fatalf("archiving a failed item: %+v %v", got, err)
	}
	if _, err := f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, id); !errors.Is(err, ErrConflict) {
		t.Fatalf("restoring without a file: expected conflict, got %v", err)
	}
	tracks, _ := f.svc.Playlist(ctx, models.CollectionVoice, 0, 10, false)
	if len(tracks) != 0 {
		t.Fatalf("playlist must not list a missing file: %+v", tracks)
	}
}

func TestIngestDirectMP3(t *testing.T) {
	f := newServiceFixture(t, filepath.Join(t.TempDir(), "missing-ffmpeg"))

	item, err := f.svc.Ingest(context.Background(), f.admin, models.CollectionAds, 0, upload("spot.mp3", "", "audio/webm", mp3Bytes))
	if err != nil {
		t.Fatalf("mp3 bytes must not need the encoder: %v", err)
	}
	if item.Title != "spot" || item.Status != models.StatusReady {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestArchiveRestoreAndStatus(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	item := f.storeMP3(t, models.CollectionVoice, f.announcer, "Promo")

	got, err := f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, item.ID)
	if err != nil || got.Status != models.StatusArchived {
		t.Fatalf("archive: %+v %v", got, err)
	}
	got, err = f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, item.ID)
	if err != nil || got.Status != models.StatusReady {
		t.Fatalf("restore: %+v %v", got, err)
	}

	if _, err := f.svc.SetStatus(ctx, f.announcer, models.CollectionVoice, item.ID, "published"); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid status: expected validation error, got %v", err)
	}
	got, err = f.svc.SetStatus(ctx, f.announcer, models.CollectionVoice, item.ID, " draft ")
	if err != nil || got.Status != models.StatusDraft {
		t.Fatalf("set draft: %+v %v", got, err)
	}
	if _, err := f.svc.SetStatus(ctx, f.announcer, models.CollectionVoice, item.ID, "DRAFT"); err != nil {
		t.Fatalf("setting the same status again: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.announcer, models.CollectionVoice, 4242, "READY"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: expected not found, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, f.announcer, models.CollectionAds, item.ID, "READY"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("wrong collection role: expected forbidden, got %v", err)
	}
}

func TestOwnershipIsEnforced(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	item := f.storeMP3(t, models.CollectionVoice, f.admin, "Admin voice")

	if _, err := f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, item.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.announcer, models.CollectionVoice, item.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	items, _, _ := f.svc.List(ctx, f.announcer, models.CollectionVoice, 1, 10)
	if len(items) != 0 {
		t.Fatalf("announcer should not see admin items, got %d", len(items))
	}
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	item := f.storeMP3(t, models.CollectionMusic, f.admin, "Gone")

	if err := os.Remove(*item.FilePath); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := f.svc.Delete(ctx, f.admin, models.CollectionMusic, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, f.admin, models.CollectionMusic, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestTransmit(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	item := f.storeMP3(t, models.CollectionVoice, f.announcer, "On air")

	f.failPlay.Store(true)
	_, _, err := f.svc.Transmit(ctx, f.announcer, models.CollectionVoice, item.ID)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) || uerr.Detail != "player offline" {
		t.Fatalf("expected upstream error, got %v", err)
	}
	stored, _ := f.svc.recorder.Find(ctx, models.CollectionVoice, item.ID)
	if stored.BroadcastCount != 0 || stored.LastBroadcastAt != nil {
		t.Fatalf("failed broadcast must not be recorded: %+v", stored)
	}

	f.failPlay.Store(false)
	got, abs, err := f.svc.Transmit(ctx, f.announcer, models.CollectionVoice, item.ID)
	if err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if abs != "http://radio.test"+item.URL {
		t.Fatalf("unexpected broadcast url %s", abs)
	}
	if got.BroadcastCount != 1 || got.LastBroadcastAt == nil || f.plays.Load() != 1 {
		t.Fatalf("broadcast not recorded: %+v plays=%d", got, f.plays.Load())
	}
	stored, _ = f.svc.recorder.Find(ctx, models.CollectionVoice, item.ID)
	if stored.BroadcastCount != 1 {
		t.Fatalf("persisted count = %d", stored.BroadcastCount)
	}

	if _, err := f.svc.ToggleArchive(ctx, f.announcer, models.CollectionVoice, item.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, _, err := f.svc.Transmit(ctx, f.announcer, models.CollectionVoice, item.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("archived item: expected conflict, got %v", err)
	}
}

func TestBroadcastURL(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	abs, err := f.svc.BroadcastURL(ctx, f.announcer, " /media/voice/x.mp3 ")
	if err != nil || abs != "http://radio.test/media/voice/x.mp3" {
		t.Fatalf("broadcast: %s %v", abs, err)
	}
	if _, err := f.svc.BroadcastURL(ctx, f.announcer, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty url: expected validation error, got %v", err)
	}
	if _, err := f.svc.BroadcastURL(ctx, models.Principal{UserID: 77, Roles: []string{models.RolePublisher}}, "/x.mp3"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("publisher: expected forbidden, got %v", err)
	}

	f.streamer.Close()
	if _, err := f.svc.BroadcastURL(ctx, f.announcer, "/x.mp3"); err == nil {
		t.Fatal("unreachable streamer should fail")
	}
}

func TestPlaylist(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	first := f.storeMP3(t, models.CollectionMusic, f.admin, "First")
	second := f.storeMP3(t, models.CollectionMusic, f.admin, "Second")
	third := f.storeMP3(t, models.CollectionMusic, f.admin, "Third")
	if _, err := f.svc.ToggleArchive(ctx, f.admin, models.CollectionMusic, second.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	tracks, err := f.svc.Playlist(ctx, models.CollectionMusic, 0, DefaultPlaylistLimit, false)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Title != third.Title || tracks[1].Title != first.Title {
		t.Fatalf("expected READY items newest first, got %+v", tracks)
	}
	if !strings.HasPrefix(tracks[0].URL, "http://radio.test/media/music/") {
		t.Fatalf("track url should be absolute: %s", tracks[0].URL)
	}

	again, _ := f.svc.Playlist(ctx, models.CollectionMusic, 0, DefaultPlaylistLimit, false)
	if again[0].URL != tracks[0].URL || again[1].URL != tracks[1].URL {
		t.Fatal("unshuffled playlist order should be stable")
	}

	limited, _ := f.svc.Playlist(ctx, models.CollectionMusic, 0, 1, false)
	if len(limited) != 1 || limited[0].Title != third.Title {
		t.Fatalf("limit: %+v", limited)
	}

	mine, _ := f.svc.Playlist(ctx, models.CollectionMusic, f.announcer.UserID, 10, true)
	if len(mine) != 0 {
		t.Fatalf("owner filter: %+v", mine)
	}
	shuffled, _ := f.svc.Playlist(ctx, models.CollectionMusic, f.admin.UserID, 10, true)
	if len(shuffled) != 2 {
		t.Fatalf("shuffle must keep every track, got %d", len(shuffled))
	}
}

func TestResolveTitle(t *testing.T) {
	cases := []struct{ provided, prefix, filename, want string }{
		{"  Morning <b>Show</b> ", "Prefix", "a.mp3", "Morning Show"},
		{"", "Prefix", "a.mp3", "Prefix"},
		{"", "", "dir/Jingle & Co.mp3", "Jingle & Co"},
		{"<script></script>", "", ".mp3", "audio"},
	}
	for _, tc := range cases {
		if got := ResolveTitle(tc.provided, tc.prefix, tc.filename); got != tc.want {
			t.Fatalf("ResolveTitle(%q, %q, %q) = %q, want %q", tc.provided, tc.prefix, tc.filename, got, tc.want)
		}
	}
}
