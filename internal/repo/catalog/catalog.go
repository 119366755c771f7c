// Package catalog is the JSON document shared by the file and S3 stores:
//
//	{"videos": {"<id>": {"photo_id": "...", "video_ids": ["..."]}}, "next_id": n}
//
// Records written by older bots carry a single "video_id" and load as
// one-video bundles.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

var ErrInvalidBundle = fmt.Errorf("bundle needs a cover and %d..%d videos", model.MinBundleVideos, model.MaxBundleVideos)

type Document struct {
	Videos map[string]Record `json:"videos"`
	NextID int64             `json:"next_id"`
}

type Record struct {
	PhotoID   string    `json:"photo_id"`
	VideoIDs  []string  `json:"video_ids,omitempty"`
	VideoID   string    `json:"video_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func Empty() Document {
	return Document{Videos: make(map[string]Record), NextID: 1}
}

// Decode parses a stored document. Empty input is an empty catalog.
func Decode(data []byte) (Document, error) {
	doc := Empty()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Empty(), fmt.Errorf("parse catalog: %w", err)
	}
	if doc.Videos == nil {
		doc.Videos = make(map[string]Record)
	}
	doc.normalizeNextID()
	return doc, nil
}

func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return data, nil
}

// Add stores a bundle under the next free ID and advances the counter.
func (d *Document) Add(bundle model.NewBundle, now time.Time) (model.Bundle, error) {
	if !bundle.Valid() {
		return model.Bundle{}, ErrInvalidBundle
	}
	if d.Videos == nil {
		d.Videos = make(map[string]Record)
	}
	d.normalizeNextID()

	id := d.NextID
	videoIDs := make([]string, 0, len(bundle.VideoRefs))
	for _, ref := range bundle.VideoRefs {
		videoIDs = append(videoIDs, string(ref))
	}
	record := Record{
		PhotoID:   string(bundle.CoverRef),
		VideoIDs:  videoIDs,
		CreatedAt: now.UTC(),
	}
	d.Videos[strconv.FormatInt(id, 10)] = record
	d.NextID = id + 1

	return record.bundle(id), nil
}

func (d Document) Get(id int64) (model.Bundle, error) {
	record, ok := d.Videos[strconv.FormatInt(id, 10)]
	if !ok || !record.usable() {
		return model.Bundle{}, model.ErrBundleNotFound
	}
	return record.bundle(id), nil
}

// List returns every usable bundle ordered by ID.
func (d Document) List() []model.Bundle {
	out := make([]model.Bundle, 0, len(d.Videos))
	for key, record := range d.Videos {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 || !record.usable() {
			continue
		}
		out = append(out, record.bundle(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d Document) Count() int {
	return len(d.List())
}

// normalizeNextID keeps the counter above every stored key, so a hand-edited
// or truncated counter never hands out an existing ID again.
func (d *Document) normalizeNextID() {
	if d.NextID < 1 {
		d.NextID = 1
	}
	for key := range d.Videos {
		id, err := strconv.ParseInt(key, 10, 64)
		if err == nil && id >= d.NextID {
			d.NextID = id + 1
		}
	}
}

func (r Record) videoRefs() []model.MediaRef {
	if len(r.VideoIDs) == 0 && r.VideoID != "" {
		return []model.MediaRef{model.MediaRef(r.VideoID)}
	}
	refs := make([]model.MediaRef, 0, len(r.VideoIDs))
	for _, id := range r.VideoIDs {
		refs = append(refs, model.MediaRef(id))
	}
	return refs
}

func (r Record) usable() bool {
	return len(r.videoRefs()) > 0
}

func (r Record) bundle(id int64) model.Bundle {
	return model.Bundle{
		ID:        id,
		CoverRef:  model.MediaRef(r.PhotoID),
		VideoRefs: r.videoRefs(),
		CreatedAt: r.CreatedAt,
	}
}
