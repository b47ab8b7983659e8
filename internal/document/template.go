package document

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"

	"github.com/dharsanguruparan/auctionlist/internal/model"
)

// TableBodySelector identifies the region whose content is replaced with lot rows.
const TableBodySelector = "tbody#auction-table-body"

// PlaceholderImage is shown for lots without any image.
const PlaceholderImage = "https://res.cloudinary.com/drydbxfl8/image/upload/v1758651858/Salvato_Auctions_Logo_Full_Color_Dark_dyltjs.png"

const (
	startCodeLimit = 20
	startCodeKeep  = 17
)

var (
	// ErrTemplateNotFound is returned when the template file does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateMarkerNotFound is returned when the template lacks the lot table body.
	ErrTemplateMarkerNotFound = errors.New(`template marker <tbody id="auction-table-body"> not found`)
)

//go:embed templates/auction_list.html
var defaultTemplate string

// LoadTemplate returns the template at path, or the embedded default when
// path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// RowOptions controls how lot rows are displayed.
type RowOptions struct {
	// VehicleDetailsURL is the prefix the stock number links to.
	VehicleDetailsURL string
	// Placeholder replaces missing thumbnails; PlaceholderImage when empty.
	Placeholder string
}

type row struct {
	ImageURL   string
	DetailsURL string
	ID         int64
	Year       int
	Make       string
	Model      string
	Mileage    string
	City       string
	State      string
	Keys       string
	StartCode  string
	Last       bool
}

var rowsTemplate = template.Must(template.New("rows").Parse(`{{range .}}
<tr class="avoid-break{{if not .Last}} border-b border-black{{end}}">
    <td class="border-r border-black p-3 col-image"><img src="{{.ImageURL}}" alt="{{.Make}} {{.Model}}" class="max-w-full max-h-20 object-cover"></td>
    <td class="border-r border-black p-3 text-blue-600 hover:text-blue-800 underline col-stock"><a href="{{.DetailsURL}}" target="_blank" rel="noopener noreferrer">{{.ID}}</a></td>
    <td class="border-r border-black p-3 col-year">{{.Year}}</td>
    <td class="border-r border-black p-3 col-make">{{.Make}}</td>
    <td class="border-r border-black p-3 col-model">{{.Model}}</td>
    <td class="border-r border-black p-3 col-mileage">{{.Mileage}}</td>
    <td class="border-r border-black p-3 col-city">{{.City}}</td>
    <td class="border-r border-black p-3 col-state">{{.State}}</td>
    <td class="border-r border-black p-3 col-keys">{{.Keys}}</td>
    <td class="border-r border-black p-3 col-start-code">{{.StartCode}}</td>
</tr>{{end}}
`))

// Render injects one table row per lot into the template. The template is
// left untouched and an error returned when the table body marker is missing.
// Inline body scripts that would populate the table client-side are removed.
func Render(tmpl string, payload model.AuctionPayload, opts RowOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tmpl))
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	tbody := doc.Find(TableBodySelector).First()
	if tbody.Length() == 0 {
		return "", ErrTemplateMarkerNotFound
	}
	rows, err := renderRows(payload.Lots, opts)
	if err != nil {
		return "", err
	}
	tbody.SetHtml(rows)
	doc.Find("body script").Not("[src]").Remove()
	doc.Find("#auction-dates").SetText(dateRange(payload.StartDate, payload.EndDate))
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize html: %w", err)
	}
	return out, nil
}

func renderRows(lots []model.FormattedLot, opts RowOptions) (string, error) {
	placeholder := opts.Placeholder
	if placeholder == "" {
		placeholder = PlaceholderImage
	}
	detailsBase := strings.TrimRight(opts.VehicleDetailsURL, "/")
	rows := make([]row, len(lots))
	for i, lot := range lots {
		image := placeholder
		if lot.ThumbnailURL != nil && *lot.ThumbnailURL != "" {
			image = *lot.ThumbnailURL
		}
		rows[i] = row{
			ImageURL:   image,
			DetailsURL: fmt.Sprintf("%s/%d", detailsBase, lot.ID),
			ID:         lot.ID,
			Year:       lot.Year,
			Make:       lot.Make,
			Model:      lot.Model,
			Mileage:    FormatMileage(lot.OdometerReading),
			City:       lot.City,
			State:      lot.State,
			Keys:       FormatKeys(lot.HasKeys),
			StartCode:  TruncateStartCode(lot.StartCode),
			Last:       i == len(lots)-1,
		}
	}
	var b strings.Builder
	if err := rowsTemplate.Execute(&b, rows); err != nil {
		return "", fmt.Errorf("render rows: %w", err)
	}
	return b.String(), nil
}

// FormatKeys displays the upstream has-keys flag.
func FormatKeys(hasKeys string) string {
	if hasKeys == "YES" {
		return "Yes"
	}
	return "No"
}

// FormatMileage adds thousands separators, or returns "N/A" when unknown.
func FormatMileage(odometer *int64) string {
	if odometer == nil {
		return "N/A"
	}
	return humanize.Comma(*odometer)
}

// TruncateStartCode shortens start codes longer than 20 characters to 17
// characters followed by "...".
func TruncateStartCode(code string) string {
	r := []rune(code)
	if len(r) <= startCodeLimit {
		return code
	}
	return string(r[:startCodeKeep]) + "..."
}

func dateRange(start, end string) string {
	s, e := displayDate(start), displayDate(end)
	switch {
	case s == "" && e == "":
		return ""
	case e == "":
		return s
	case s == "":
		return e
	}
	return s + " to " + e
}

func displayDate(v string) string {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC().Format("Jan 2, 2006 3:04 PM MST")
	}
	return v
}
