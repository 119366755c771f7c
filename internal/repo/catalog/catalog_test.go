package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

func TestDecodeLegacyRecord(t *testing.T) {
	doc, err := Decode([]byte(`{"videos": {"3": {"video_id": "vid-a", "photo_id": "photo-a"}}, "next_id": 4}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	bundle, err := doc.Get(3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bundle.CoverRef != "photo-a" || len(bundle.VideoRefs) != 1 || bundle.VideoRefs[0] != "vid-a" {
		t.Fatalf("unexpected legacy bundle: %+v", bundle)
	}
	if doc.NextID != 4 {
		t.Fatalf("expected next_id 4, got %d", doc.NextID)
	}
}

func TestDecodeEmptyAndCorrupt(t *testing.T) {
	doc, err := Decode(nil)
	if err != nil || doc.NextID != 1 || len(doc.Videos) != 0 {
		t.Fatalf("expected empty catalog, got %+v err=%v", doc, err)
	}

	doc, err = Decode([]byte("{not json"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if doc.NextID != 1 || doc.Videos == nil {
		t.Fatalf("corrupt input must still yield a usable empty catalog: %+v", doc)
	}
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	doc := Empty()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	first, err := doc.Add(model.NewBundle{CoverRef: "c1", VideoRefs: []model.MediaRef{"v1"}}, now)
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := doc.Add(model.NewBundle{CoverRef: "c2", VideoRefs: []model.MediaRef{"v2", "v3"}}, now)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if first.ID != 1 || second.ID != 2 || doc.NextID != 3 {
		t.Fatalf("unexpected ids: %d %d next=%d", first.ID, second.ID, doc.NextID)
	}

	list := doc.List()
	if len(list) != 2 || list[1].VideoRefs[1] != "v3" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestAddRejectsInvalidBundle(t *testing.T) {
	doc := Empty()
	_, err := doc.Add(model.NewBundle{CoverRef: "c"}, time.Now())
	if !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("expected ErrInvalidBundle, got %v", err)
	}
	if doc.NextID != 1 {
		t.Fatalf("rejected bundle must not consume an id")
	}
}

func TestNextIDNeverReusesStoredKeys(t *testing.T) {
	doc, err := Decode([]byte(`{"videos": {"9": {"photo_id": "p", "video_ids": ["v"]}}, "next_id": 2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bundle, err := doc.Add(model.NewBundle{CoverRef: "c", VideoRefs: []model.MediaRef{"v"}}, time.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if bundle.ID != 10 {
		t.Fatalf("expected id 10, got %d", bundle.ID)
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Empty().Get(1); !errors.Is(err, model.ErrBundleNotFound) {
		t.Fatalf("expected ErrBundleNotFound, got %v", err)
	}
}
