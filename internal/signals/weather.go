// internal/signals/weather.go
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/stockpilot/inventory-agent/internal/config"
)

// WeatherFetcher pulls forecast temperatures from the weather collaborator.
// It is optional: without an API key every fetch reports unavailable, which
// the processor records as a missing signal rather than an error.
type WeatherFetcher struct {
	client *resty.Client
	apiKey string
}

type weatherForecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				AvgTempC float64 `json:"avgtemp_c"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func NewWeatherFetcher(cfg config.SignalsConfig) *WeatherFetcher {
	client := resty.New()
	client.SetBaseURL(cfg.WeatherBaseURL)
	client.SetTimeout(cfg.FetchTimeout)
	client.SetRetryCount(0)

	return &WeatherFetcher{
		client: client,
		apiKey: cfg.WeatherAPIKey,
	}
}

// Enabled reports whether the fetcher can make live calls at all.
func (f *WeatherFetcher) Enabled() bool {
	return f.apiKey != ""
}

// FetchDaily returns average forecast temperature keyed by day for the given
// range. The call is bounded by the client timeout and the caller's context;
// a failure returns an error the processor downgrades to missing signals.
func (f *WeatherFetcher) FetchDaily(ctx context.Context, location string, days int) (map[string]float64, error) {
	if !f.Enabled() {
		return nil, fmt.Errorf("weather collaborator not configured")
	}

	var payload weatherForecastResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":  f.apiKey,
			"q":    location,
			"days": fmt.Sprintf("%d", days),
		}).
		SetResult(&payload).
		Get("/forecast.json")
	if err != nil {
		return nil, fmt.Errorf("weather fetch failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather fetch failed: status %d", resp.StatusCode())
	}

	temps := make(map[string]float64, len(payload.Forecast.ForecastDay))
	for _, day := range payload.Forecast.ForecastDay {
		temps[day.Date] = day.Day.AvgTempC
	}
	log.Debug().Int("days", len(temps)).Str("location", location).Msg("fetched weather forecast")
	return temps, nil
}

// DateKey formats a day the way the weather collaborator keys its forecast.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
