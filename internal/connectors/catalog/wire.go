package catalog

import (
	"time"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// listResponse is the body of GET /records.
type listResponse struct {
	Pagination pagination   `json:"pagination"`
	Records    []wireRecord `json:"records"`
}

type pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

type wireRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Year      int    `json:"year"`
	Format    string `json:"format"`
	Condition string `json:"condition"`
	Price     string `json:"price"`
	Status    string `json:"status"`
	Modified  string `json:"modified,omitempty"`
}

// detailResponse is the body of GET /records/{id}.
type detailResponse struct {
	ID        string      `json:"id"`
	Genres    []string    `json:"genres"`
	Styles    []string    `json:"styles"`
	Tracklist []wireTrack `json:"tracklist"`
	Images    []wireImage `json:"images"`
	Notes     string      `json:"notes"`
}

type wireTrack struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

type wireImage struct {
	Type   string `json:"type"`
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (w wireRecord) toDomain() domain.RemoteRecord {
	rec := domain.RemoteRecord{
		ID: w.ID,
		Summary: domain.Summary{
			Title:     w.Title,
			Artist:    w.Artist,
			Year:      w.Year,
			Format:    w.Format,
			Condition: w.Condition,
			Price:     w.Price,
			Status:    w.Status,
		},
	}
	// An unparsable marker is treated as absent
	if w.Modified != "" {
		if t, err := time.Parse(time.RFC3339, w.Modified); err == nil {
			rec.Modified = t.UTC()
		}
	}
	return rec
}

func (d detailResponse) toDomain(id string) *domain.DetailRecord {
	detail := domain.Detail{
		Genres: d.Genres,
		Styles: d.Styles,
		Notes:  d.Notes,
	}
	for _, t := range d.Tracklist {
		detail.Tracklist = append(detail.Tracklist, domain.Track{
			Position: t.Position,
			Title:    t.Title,
			Duration: t.Duration,
		})
	}
	for _, img := range d.Images {
		detail.Images = append(detail.Images, domain.Image{
			Type:   img.Type,
			URI:    img.URI,
			Width:  img.Width,
			Height: img.Height,
		})
	}
	// The requested ID wins so the merge always targets the queued record
	return &domain.DetailRecord{ID: id, Detail: detail}
}
