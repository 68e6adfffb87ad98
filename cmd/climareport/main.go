package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/climareport/internal/alerts"
	"github.com/lox/climareport/internal/api"
	"github.com/lox/climareport/internal/ingest"
	"github.com/lox/climareport/internal/models"
	"github.com/lox/climareport/internal/report"
	"github.com/lox/climareport/internal/session"
	"github.com/lox/climareport/internal/store"
)

const dateLayout = "2006-01-02"

type Globals struct {
	DB             string `help:"SQLite cache path; empty keeps the cache in memory." env:"CLIMAREPORT_DB"`
	Output         string `help:"Directory for the rendered report." default:"dist" type:"path" env:"CLIMAREPORT_OUTPUT"`
	GrowerID       int64  `help:"Client (grower) asset id." default:"92088" env:"CLIMAREPORT_GROWER_ID"`
	GrowerName     string `help:"Client name shown on the report." default:"Clayton Sheiki Tessaro" env:"CLIMAREPORT_GROWER_NAME"`
	Stations       string `help:"JSON file listing the client's stations; defaults to the built-in list." type:"existingfile" env:"CLIMAREPORT_STATIONS"`
	Timezone       string `help:"Report timezone for forecast dates and the history range." default:"America/Cuiaba" env:"CLIMAREPORT_TIMEZONE"`
	RadiationSince string `help:"First day (YYYY-MM-DD) counted in radiation figures; empty counts everything." default:"2025-11-05" env:"CLIMAREPORT_RADIATION_SINCE"`

	RainThreshold     float64 `help:"Rain alert threshold (mm)." default:"50" env:"CLIMAREPORT_ALERT_RAIN"`
	GustThreshold     float64 `help:"Gust alert threshold (km/h)." default:"50" env:"CLIMAREPORT_ALERT_GUST"`
	TempHighThreshold float64 `help:"High temperature alert threshold (°C)." default:"40" env:"CLIMAREPORT_ALERT_TEMP_HIGH"`
	TempLowThreshold  float64 `help:"Low temperature alert threshold (°C)." default:"5" env:"CLIMAREPORT_ALERT_TEMP_LOW"`
	HumidityThreshold float64 `help:"Low humidity alert threshold (%)." default:"20" env:"CLIMAREPORT_ALERT_HUMIDITY"`
	DeltaTThreshold   float64 `help:"Delta-T alert threshold (°C)." default:"9" env:"CLIMAREPORT_ALERT_DELTA_T"`
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

func (g *Globals) radiationSince() (time.Time, error) {
	if g.RadiationSince == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, g.RadiationSince)
	if err != nil {
		return time.Time{}, fmt.Errorf("radiation-since: %w", err)
	}
	return t, nil
}

func (g *Globals) thresholds() alerts.Thresholds {
	return alerts.Thresholds{
		Rain:        g.RainThreshold,
		Gust:        g.GustThreshold,
		TempHigh:    g.TempHighThreshold,
		TempLow:     g.TempLowThreshold,
		HumidityLow: g.HumidityThreshold,
		DeltaTHigh:  g.DeltaTThreshold,
	}
}

type CLI struct {
	Globals

	Generate GenerateCmd `cmd:"" default:"1" help:"Fetch, clean and store the client's data, then render the report."`
	Render   RenderCmd   `cmd:"" help:"Render the report from the stored cache without fetching."`
	Serve    ServeCmd    `cmd:"" help:"Serve the rendered report and its filter API."`
}

type GenerateCmd struct {
	BaseURL  string `help:"Farm data API base URL." default:"https://admin.farmcommand.com" env:"CLIMAREPORT_BASE_URL"`
	LoginURL string `help:"Login form URL." default:"https://admin.farmcommand.com/login/" env:"CLIMAREPORT_LOGIN_URL"`
	Username string `help:"Login username." env:"CLIMAREPORT_USERNAME"`
	Password string `help:"Login password." env:"CLIMAREPORT_PASSWORD"`
	Season   int    `help:"Asset season id." default:"1083" env:"CLIMAREPORT_SEASON"`

	HistoryDays     int           `help:"Days of history to fetch, ending yesterday." default:"730" env:"CLIMAREPORT_HISTORY_DAYS"`
	WindowPause     time.Duration `help:"Pause between history windows." default:"100ms" env:"CLIMAREPORT_WINDOW_PAUSE"`
	HistoryTimeout  time.Duration `help:"Timeout per history request." default:"180s" env:"CLIMAREPORT_HISTORY_TIMEOUT"`
	ForecastTimeout time.Duration `help:"Timeout per forecast request." default:"60s" env:"CLIMAREPORT_FORECAST_TIMEOUT"`

	MinLat float64 `help:"Southern edge of the cold-reading region." default:"-18.2" env:"CLIMAREPORT_REGION_MIN_LAT"`
	MaxLat float64 `help:"Northern edge of the cold-reading region." default:"-7.5" env:"CLIMAREPORT_REGION_MAX_LAT"`
	MinLon float64 `help:"Western edge of the cold-reading region." default:"-61.8" env:"CLIMAREPORT_REGION_MIN_LON"`
	MaxLon float64 `help:"Eastern edge of the cold-reading region." default:"-50.0" env:"CLIMAREPORT_REGION_MAX_LON"`

	ArchivePayloads  bool          `help:"Archive raw upstream responses in the cache." default:"true" negatable:"" env:"CLIMAREPORT_ARCHIVE"`
	PayloadRetention time.Duration `help:"Delete archived payloads older than this; 0 keeps them." default:"720h" env:"CLIMAREPORT_PAYLOAD_RETENTION"`
	MetricsFile      string        `help:"Write Prometheus metrics to this textfile after the run." env:"CLIMAREPORT_METRICS_FILE"`

	Serve bool   `help:"Serve the report and its filter API from this run's cache after rendering." env:"CLIMAREPORT_SERVE"`
	Port  string `help:"HTTP server port for --serve." default:"8080" env:"PORT"`
}

func (c *GenerateCmd) Run(ctx context.Context, g *Globals) error {
	stations, err := loadStations(g.Stations)
	if err != nil {
		return err
	}
	since, err := g.radiationSince()
	if err != nil {
		return err
	}

	st, err := store.Open(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Println("database migrated")

	sessions := session.NewManager(session.Login(session.Credentials{
		LoginURL: c.LoginURL,
		Username: c.Username,
		Password: c.Password,
	}))
	client := ingest.NewClient(sessions, ingest.Config{
		BaseURL:         c.BaseURL,
		Season:          c.Season,
		HistoryTimeout:  c.HistoryTimeout,
		ForecastTimeout: c.ForecastTimeout,
		WindowPause:     c.WindowPause,
		Location:        g.location(),
	})
	pipeline := ingest.NewPipeline(client, st, ingest.PipelineConfig{
		GrowerID:        g.GrowerID,
		Stations:        stations,
		Region:          ingest.Region{MinLat: c.MinLat, MaxLat: c.MaxLat, MinLon: c.MinLon, MaxLon: c.MaxLon},
		HistoryDays:     c.HistoryDays,
		ArchivePayloads: c.ArchivePayloads,
	})

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	page, err := report.Write(g.Output, report.Input{
		RunID:          res.RunID,
		GeneratedAt:    time.Now().In(g.location()),
		GrowerName:     g.GrowerName,
		Stations:       res.Stations,
		Fields:         res.Fields,
		Rows:           res.Rows,
		Forecasts:      res.Forecasts,
		Thresholds:     g.thresholds(),
		RadiationSince: since,
	})
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := saveAlerts(st, res.RunID, page); err != nil {
		return err
	}

	if c.PayloadRetention > 0 {
		n, err := st.CleanupOldRawPayloads(time.Now().Add(-c.PayloadRetention))
		if err != nil {
			log.Printf("cleanup raw payloads: %v", err)
		} else if n > 0 {
			log.Printf("cleaned up %d archived payloads", n)
		}
	}
	if c.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(c.MetricsFile, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if !c.Serve {
		return nil
	}
	log.Printf("serving report on :%s", c.Port)
	return newServer(st, g, c.Port, since).Run(ctx)
}

func newServer(st *store.Store, g *Globals, port string, since time.Time) *api.Server {
	return api.NewServer(st, api.Config{
		Port:           port,
		Dir:            g.Output,
		GrowerID:       g.GrowerID,
		Thresholds:     g.thresholds(),
		RadiationSince: since,
	})
}

// saveAlerts stores and logs the alerts shown on the page.
func saveAlerts(st *store.Store, runID string, page *report.Page) error {
	var historical []models.Alert
	for _, g := range page.Historical {
		historical = append(historical, g.Alerts...)
	}
	if err := st.SaveAlerts(runID, store.AlertSourceHistorical, historical); err != nil {
		return fmt.Errorf("store historical alerts: %w", err)
	}
	if err := st.SaveAlerts(runID, store.AlertSourceForecast, page.ForecastAlerts); err != nil {
		return fmt.Errorf("store forecast alerts: %w", err)
	}

	log.Printf("alerts: %d historical, %d forecast", len(historical), len(page.ForecastAlerts))
	for _, a := range page.ForecastAlerts {
		log.Printf("alerts: %s", alerts.Text(a))
	}
	return nil
}

type RenderCmd struct{}

func (c *RenderCmd) Run(g *Globals) error {
	if g.DB == "" {
		return errors.New("render needs a database path")
	}
	since, err := g.radiationSince()
	if err != nil {
		return err
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	stations, err := st.Stations()
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}
	if len(stations) == 0 {
		if stations, err = loadStations(g.Stations); err != nil {
			return err
		}
	}
	rows, err := st.Observations(time.Time{}, time.Now().AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	forecasts, err := st.LatestForecasts()
	if err != nil {
		return fmt.Errorf("load forecasts: %w", err)
	}
	fields, err := st.Fields(g.GrowerID)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}
	runID, err := st.LatestRunID()
	if err != nil {
		return fmt.Errorf("load run id: %w", err)
	}

	_, err = report.Write(g.Output, report.Input{
		RunID:          runID,
		GeneratedAt:    time.Now().In(g.location()),
		GrowerName:     g.GrowerName,
		Stations:       stations,
		Fields:         fields,
		Rows:           rows,
		Forecasts:      forecasts,
		Thresholds:     g.thresholds(),
		RadiationSince: since,
	})
	return err
}

type ServeCmd struct {
	Port string `help:"HTTP server port." default:"8080" env:"PORT"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	if g.DB == "" {
		return errors.New("serve needs a database path")
	}
	since, err := g.radiationSince()
	if err != nil {
		return err
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	log.Printf("starting server on :%s", c.Port)
	return newServer(st, g, c.Port, since).Run(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("climareport"),
		kong.Description("Weather report generator for a farm client's stations."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	err := kctx.Run(&cli.Globals)
	if errors.Is(err, session.ErrAuth) {
		log.Printf("authentication failed: %v", err)
		cancel()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}
