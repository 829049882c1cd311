package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

var (
	recordsMissingDetail bool
	recordsLimit         int
	recordsJSON          bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List records in the local store",
	RunE:  runRecords,
}

func init() {
	recordsCmd.Flags().BoolVar(&recordsMissingDetail, "missing-detail", false, "Only records still waiting for detail")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "Maximum records to show (0 for all)")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(recordsCmd)
}

// recordView is the JSON shape of a listed record.
type recordView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Year      int      `json:"year,omitempty"`
	Format    string   `json:"format,omitempty"`
	Price     string   `json:"price,omitempty"`
	Status    string   `json:"status,omitempty"`
	HasDetail bool     `json:"has_detail"`
	Genres    []string `json:"genres,omitempty"`
	Styles    []string `json:"styles,omitempty"`
	Tracks    int      `json:"tracks,omitempty"`
	Image     string   `json:"image,omitempty"`
}

func runRecords(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Records == nil {
		return errors.New("record store not configured")
	}
	if recordsLimit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", domain.ErrInvalidInput)
	}

	records, err := services.Records.List(cmd.Context(), domain.RecordFilter{
		MissingDetail: recordsMissingDetail,
		Limit:         recordsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	out := cmd.OutOrStdout()
	if recordsJSON {
		views := make([]recordView, 0, len(records))
		for _, r := range records {
			views = append(views, newRecordView(r))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(records) == 0 {
		printMuted(out, "No records found.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "ARTIST", "TITLE", "YEAR", "FORMAT", "DETAIL").
		StyleFunc(tableStyle)
	for _, r := range records {
		year := ""
		if r.Summary.Year > 0 {
			year = strconv.Itoa(r.Summary.Year)
		}
		detail := "no"
		if r.HasDetail {
			detail = "yes"
		}
		t.Row(r.ID, r.Summary.Artist, r.Summary.Title, year, r.Summary.Format, detail)
	}
	_, _ = fmt.Fprintln(out, t.Render())
	printMuted(out, "%d record(s)", len(records))
	return nil
}

func tableStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

func newRecordView(r domain.LocalRecord) recordView {
	v := recordView{
		ID:        r.ID,
		Title:     r.Summary.Title,
		Artist:    r.Summary.Artist,
		Year:      r.Summary.Year,
		Format:    r.Summary.Format,
		Price:     r.Summary.Price,
		Status:    r.Summary.Status,
		HasDetail: r.HasDetail,
	}
	if r.Detail != nil {
		v.Genres = r.Detail.Genres
		v.Styles = r.Detail.Styles
		v.Tracks = len(r.Detail.Tracklist)
		if img := r.Detail.PrimaryImage(); img != nil {
			v.Image = img.URI
			if img.MirrorKey != "" {
				v.Image = img.MirrorKey
			}
		}
	}
	return v
}
