package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/climareport/internal/httputil"
	"github.com/lox/climareport/internal/metrics"
	"github.com/lox/climareport/internal/models"
)

const (
	EndpointDailyForecast  = "daily_forecast"
	EndpointHourlyForecast = "hourly_forecast"

	DailyHorizon  = 10
	HourlyHorizon = 48
)

type forecastRequest struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Unit string  `json:"unit"`
}

type DailyForecastResponse struct {
	Forecasts []DailyForecastEntry `json:"forecasts"`
}

type DailyForecastEntry struct {
	FcstValid int64     `json:"fcst_valid"`
	Dow       string    `json:"dow"`
	MinTemp   FlexFloat `json:"min_temp"`
	MaxTemp   FlexFloat `json:"max_temp"`
	QPF       *float64  `json:"qpf"`
	Day       *struct {
		Phrase32     string   `json:"phrase_32char"`
		Pop          *float64 `json:"pop"`
		WindSpeed    *float64 `json:"wspd"`
		WindCardinal *string  `json:"wdir_cardinal"`
	} `json:"day"`
}

type HourlyForecastResponse struct {
	Forecasts []HourlyForecastEntry `json:"forecasts"`
}

type HourlyForecastEntry struct {
	FcstValidLocal string    `json:"fcst_valid_local"`
	Temp           FlexFloat `json:"temp"`
	RH             FlexFloat `json:"rh"`
	WindSpeed      FlexFloat `json:"wspd"`
	DeltaT         FlexFloat `json:"delta_t"`
	Pop            *float64  `json:"pop"`
	QPF            *float64  `json:"qpf"`
}

// FetchDailyForecast returns up to ten daily forecasts for a coordinate. After
// the configured number of failed attempts an empty list is returned.
func (c *Client) FetchDailyForecast(ctx context.Context, station models.Station) []models.DailyForecast {
	var data DailyForecastResponse
	if err := c.postForecast(ctx, EndpointDailyForecast, "/weather/wsi/daily-forecast/", station, &data); err != nil {
		log.Printf("forecast: daily %s: %v", station.Name, err)
		return []models.DailyForecast{}
	}
	return ConvertDailyForecast(data, c.cfg.Location)
}

// FetchHourlyForecast returns up to 48 hourly forecasts for a coordinate.
func (c *Client) FetchHourlyForecast(ctx context.Context, station models.Station) []models.HourlyForecast {
	var data HourlyForecastResponse
	if err := c.postForecast(ctx, EndpointHourlyForecast, "/weather/wsi/hourly-forecast/", station, &data); err != nil {
		log.Printf("forecast: hourly %s: %v", station.Name, err)
		return []models.HourlyForecast{}
	}
	return ConvertHourlyForecast(data)
}

func (c *Client) postForecast(ctx context.Context, endpoint, path string, station models.Station, out any) error {
	payload, err := json.Marshal(forecastRequest{Lat: station.Latitude, Lon: station.Longitude, Unit: "m"})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attempt := 0
	refreshed := false
	operation := func() error {
		attempt++
		handle, err := c.sessions.Client(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		body, err := c.do(ctx, httputil.WithTimeout(handle, c.cfg.ForecastTimeout), endpoint, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			// A rejected session is refreshed once; the next attempt uses the new handle.
			if isUnauthorized(err) && !refreshed {
				log.Printf("ingest: %s: session rejected, re-authenticating", endpoint)
				metrics.Reauthentications.Inc()
				refreshed = true
				if _, rerr := c.sessions.Refresh(ctx); rerr != nil {
					return backoff.Permanent(fmt.Errorf("re-authenticate: %w", rerr))
				}
			}
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal %s: %w", endpoint, err)
		}
		if c.onPayload != nil {
			c.onPayload(endpoint, station.StationID, time.Now().UTC(), body)
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ForecastRetryDelay), uint64(c.cfg.ForecastAttempts-1))
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return nil
}

// ConvertDailyForecast keeps the first ten entries and applies defaults and
// pt-BR translations. Dates are labelled in loc.
func ConvertDailyForecast(data DailyForecastResponse, loc *time.Location) []models.DailyForecast {
	entries := data.Forecasts
	if len(entries) > DailyHorizon {
		entries = entries[:DailyHorizon]
	}
	out := make([]models.DailyForecast, 0, len(entries))
	for _, e := range entries {
		validAt := time.Unix(e.FcstValid, 0).In(loc)
		f := models.DailyForecast{
			ValidAt:     validAt,
			Date:        validAt.Format("02/01"),
			Weekday:     TranslateWeekday(e.Dow),
			TempMin:     e.MinTemp.Ptr(),
			TempMax:     e.MaxTemp.Ptr(),
			Description: "N/D",
			WindDir:     "N/D",
		}
		if e.QPF != nil {
			f.PrecipAmount = *e.QPF
		}
		if e.Day != nil {
			if e.Day.Phrase32 != "" {
				f.Description = TranslatePhrase(e.Day.Phrase32)
			}
			if e.Day.Pop != nil {
				f.PrecipChance = *e.Day.Pop
			}
			if e.Day.WindSpeed != nil {
				f.WindSpeed = *e.Day.WindSpeed
			}
			if e.Day.WindCardinal != nil {
				f.WindDir = *e.Day.WindCardinal
			}
		}
		out = append(out, f)
	}
	return out
}

// ConvertHourlyForecast keeps the first 48 entries. The spray condition is
// left empty for the caller to derive.
func ConvertHourlyForecast(data HourlyForecastResponse) []models.HourlyForecast {
	entries := data.Forecasts
	if len(entries) > HourlyHorizon {
		entries = entries[:HourlyHorizon]
	}
	out := make([]models.HourlyForecast, 0, len(entries))
	for _, e := range entries {
		h := models.HourlyForecast{
			ValidLocal: e.FcstValidLocal,
			Temp:       e.Temp.Ptr(),
			Humidity:   e.RH.Ptr(),
			WindSpeed:  e.WindSpeed.Ptr(),
			DeltaT:     e.DeltaT.Ptr(),
		}
		if e.Pop != nil {
			h.PrecipChance = *e.Pop
		}
		if e.QPF != nil {
			h.PrecipAmount = *e.QPF
		}
		out = append(out, h)
	}
	return out
}
