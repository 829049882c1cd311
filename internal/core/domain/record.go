package domain

import (
	"slices"
	"time"
)

// Summary holds the record fields the catalog returns from its listing
// endpoint. Two summaries are equal when every field matches.
type Summary struct {
	Title     string
	Artist    string
	Year      int
	Format    string
	Condition string
	Price     string
	Status    string
}

// RemoteRecord is a record as enumerated by the remote catalog.
type RemoteRecord struct {
	// ID is the catalog identifier. It is stable across syncs.
	ID string

	// Summary holds the cheap listing fields.
	Summary Summary

	// Modified is the catalog's last-modified marker.
	// Zero when the catalog does not report one.
	Modified time.Time
}

// Page is one page of a catalog enumeration.
type Page struct {
	// Records are returned in catalog order.
	Records []RemoteRecord

	// NextCursor resumes enumeration after this page.
	// Empty when this is the last page.
	NextCursor string

	// Total is the catalog's reported item count, 0 if unknown.
	Total int
}

// HasMore reports whether another page follows.
func (p *Page) HasMore() bool {
	return p != nil && p.NextCursor != ""
}

// Track is one entry of a release tracklist.
type Track struct {
	Position string
	Title    string
	Duration string
}

// Image references artwork held by the catalog.
type Image struct {
	// Type is the catalog's image role, e.g. "primary" or "secondary".
	Type   string
	URI    string
	Width  int
	Height int

	// MirrorKey is the object key of a local mirror copy, if one was made.
	MirrorKey string
}

// Detail is the full attribute set of a record.
type Detail struct {
	Genres    []string
	Styles    []string
	Tracklist []Track
	Images    []Image
	Notes     string
}

// Equal reports whether two details carry the same payload.
func (d Detail) Equal(other Detail) bool {
	return d.Notes == other.Notes &&
		slices.Equal(d.Genres, other.Genres) &&
		slices.Equal(d.Styles, other.Styles) &&
		slices.Equal(d.Tracklist, other.Tracklist) &&
		slices.Equal(d.Images, other.Images)
}

// PrimaryImage returns the first image of type "primary", falling back to
// the first image. Returns nil when there are no images.
func (d Detail) PrimaryImage() *Image {
	for i := range d.Images {
		if d.Images[i].Type == "primary" {
			return &d.Images[i]
		}
	}
	if len(d.Images) > 0 {
		return &d.Images[0]
	}
	return nil
}

// DetailRecord is a detail payload fetched for one identifier.
type DetailRecord struct {
	ID     string
	Detail Detail
}

// LocalRecord is the reconciled row held by the local store.
type LocalRecord struct {
	// ID is the remote identifier. Unique and immutable.
	ID string

	// Summary mirrors the latest listed summary.
	Summary Summary

	// Modified is the last remote modified marker seen.
	Modified time.Time

	// Detail is nil until a detail fetch has been merged.
	Detail *Detail

	// HasDetail only ever moves from false to true.
	HasDetail bool

	CreatedAt       time.Time
	UpdatedAt       time.Time
	DetailUpdatedAt time.Time
}

// RecordFilter narrows a local record listing.
type RecordFilter struct {
	// MissingDetail restricts the listing to records without detail.
	MissingDetail bool

	// Limit caps the number of records returned. 0 means no limit.
	Limit int
}

// RecordStats summarises the local store.
type RecordStats struct {
	Total         int
	WithDetail    int
	MissingDetail int
}

// Classification is the outcome of comparing a listed record with the
// local store.
type Classification int

// Classifications.
const (
	// ClassNew means no local record exists for the identifier.
	ClassNew Classification = iota

	// ClassChanged means the local record has detail but its summary differs.
	ClassChanged

	// ClassUnchanged means nothing needs writing in incremental mode.
	ClassUnchanged

	// ClassDetailMissing means the local record exists without detail.
	ClassDetailMissing
)

// String returns the string representation.
func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassChanged:
		return "changed"
	case ClassUnchanged:
		return "unchanged"
	case ClassDetailMissing:
		return "detail_missing"
	default:
		return "unknown"
	}
}

// WritesSummary reports whether the listed summary must be upserted.
// Full mode forces a rewrite of unchanged records.
func (c Classification) WritesSummary(mode SyncMode) bool {
	if c == ClassUnchanged {
		return mode == SyncModeFull
	}
	return true
}

// NeedsDetail reports whether the record must be queued for backfill.
// Detail is never re-fetched for records that already have it.
func (c Classification) NeedsDetail() bool {
	return c == ClassNew || c == ClassDetailMissing
}

// Clone returns a deep copy of the detail.
func (d Detail) Clone() Detail {
	return Detail{
		Genres:    slices.Clone(d.Genres),
		Styles:    slices.Clone(d.Styles),
		Tracklist: slices.Clone(d.Tracklist),
		Images:    slices.Clone(d.Images),
		Notes:     d.Notes,
	}
}
