package media

import (
	"errors"
	"testing"

	"github.com/cppla/radiocms/models"
)

func TestNextToggleStatus(t *testing.T) {
	cases := []struct {
		cur     models.MediaStatus
		want    models.MediaStatus
		wantErr error
	}{
		{models.StatusReady, models.StatusArchived, nil},
		{models.StatusArchived, models.StatusReady, nil},
		{models.StatusDraft, models.StatusArchived, nil},
		{models.StatusFailed, models.StatusArchived, nil},
		{models.StatusProcessing, "", ErrConflict},
	}
	for _, tc := range cases {
		got, err := NextToggleStatus(tc.cur)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.cur, tc.wantErr, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %s, %v; want %s", tc.cur, got, err, tc.want)
		}
	}
}

func TestBroadcastable(t *testing.T) {
	for _, s := range []models.MediaStatus{models.StatusDraft, models.StatusProcessing, models.StatusArchived, models.StatusFailed} {
		if Broadcastable(s) {
			t.Fatalf("%s must not be broadcastable", s)
		}
	}
	if !Broadcastable(models.StatusReady) {
		t.Fatal("READY must be broadcastable")
	}
}

func TestCanManage(t *testing.T) {
	admin := models.Principal{UserID: 1, Roles: []string{models.RoleAdmin}}
	publisher := models.Principal{UserID: 2, Roles: []string{models.RolePublisher}}
	announcer := models.Principal{UserID: 3, Roles: []string{models.RoleAnnouncer}}

	for _, c := range []models.Collection{models.CollectionAds, models.CollectionMusic, models.CollectionVoice} {
		if !CanManage(admin, c) {
			t.Fatalf("admin should manage %s", c)
		}
		if CanManage(publisher, c) {
			t.Fatalf("publisher should not manage %s", c)
		}
	}
	if !CanManage(announcer, models.CollectionVoice) {
		t.Fatal("announcer should manage voice")
	}
	if _, err := ParseCollection("podcasts"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown collection: %v", err)
	}
}
