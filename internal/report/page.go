// Package report renders a run's cleaned data set and derived structures
// into a static artifact directory: the split-format dataset and a single
// page that embeds everything else.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/analysis"
	"github.com/lox/climareport/internal/geo"
	"github.com/lox/climareport/internal/locale"
	"github.com/lox/climareport/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// PageFile is the name of the rendered dashboard.
const PageFile = "index.html"

type Input struct {
	RunID          string
	GeneratedAt    time.Time
	GrowerName     string
	Stations       []models.Station
	Fields         []models.FieldGeometry
	Rows           []models.ObservationRow
	Forecasts      models.Forecasts
	Thresholds     alerts.Thresholds
	RadiationSince time.Time
}

// Page is everything the template needs. The default view covers the whole
// data set for every station.
type Page struct {
	RunID            string
	GeneratedAt      string
	DataFile         string
	Geo              models.GeoData
	Forecasts        models.Forecasts
	ForecastStations []string
	View             analysis.View
	Layers           []geo.Layer
	Historical       []alerts.MonthGroup
	ForecastAlerts   []models.Alert
	Period           string
}

// HasData reports whether the run produced any observation rows.
func (p *Page) HasData() bool {
	return p.View.Rows > 0
}

// Build derives the page from a run's data.
func Build(in Input) (*Page, error) {
	order := make([]string, 0, len(in.Stations))
	for _, st := range in.Stations {
		order = append(order, st.Name)
	}

	p := &Page{
		RunID:          in.RunID,
		GeneratedAt:    in.GeneratedAt.Format("02/01/2006 15:04"),
		DataFile:       DataFile,
		Geo:            models.GeoData{GrowerName: in.GrowerName, Fields: in.Fields, Stations: in.Stations},
		Forecasts:      WithAverage(in.Forecasts, order),
		Historical:     alerts.Historical(in.Rows, in.Thresholds),
		ForecastAlerts: alerts.Forecast(in.Forecasts, in.Thresholds),
	}
	if p.Geo.Fields == nil {
		p.Geo.Fields = []models.FieldGeometry{}
	}
	if p.Geo.Stations == nil {
		p.Geo.Stations = []models.Station{}
	}
	p.ForecastStations = append([]string{analysis.AverageLabel}, order...)

	var f analysis.Filter
	if start, end, ok := analysis.Span(in.Rows); ok {
		f.Start, f.End = start, end
		p.Period = fmt.Sprintf("%s a %s", locale.Date(start), locale.Date(end))
	}
	p.View = analysis.BuildView(in.Rows, f, analysis.ViewOptions{
		StationCount:   len(analysis.StationNames(in.Rows)),
		RadiationSince: in.RadiationSince,
	})

	inRange := analysis.Apply(in.Rows, f)
	for _, key := range geo.MetricOrder {
		layer, err := geo.BuildLayer(key, inRange, in.Stations, in.Fields, f.Start, f.End)
		if err != nil {
			return nil, fmt.Errorf("build %s layer: %w", key, err)
		}
		p.Layers = append(p.Layers, layer)
	}
	return p, nil
}

// WithAverage returns a copy of f with the cross-station average added under
// analysis.AverageLabel.
func WithAverage(f models.Forecasts, order []string) models.Forecasts {
	out := models.NewForecasts()
	for name, d := range f.Daily {
		out.Daily[name] = d
	}
	for name, h := range f.Hourly {
		out.Hourly[name] = h
	}
	out.Daily[analysis.AverageLabel] = analysis.AverageDaily(f.Daily, order)
	out.Hourly[analysis.AverageLabel] = analysis.AverageHourly(f.Hourly, order)
	return out
}

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"num":    locale.Number,
		"numptr": locale.NumberPtr,
		// Alert descriptions only carry formatted numbers and <strong> markup.
		"markup": func(s string) template.HTML {
			return template.HTML(s)
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

var tmpl = newTemplates()

// Render writes the dashboard page for p.
func Render(w io.Writer, p *Page) error {
	return tmpl.ExecuteTemplate(w, PageFile, p)
}

// Write builds the page and writes both artifacts into dir.
func Write(dir string, in Input) (*Page, error) {
	page, err := Build(in)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, DataFile), func(w io.Writer) error {
		return WriteDataset(w, in.Rows)
	}); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, PageFile), func(w io.Writer) error {
		return Render(w, page)
	}); err != nil {
		return nil, err
	}
	log.Printf("report: wrote %s and %s to %s (%d rows)", DataFile, PageFile, dir, len(in.Rows))
	return page, nil
}

// writeFile writes through a temporary file so a failed render never leaves
// a truncated artifact behind.
func writeFile(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
