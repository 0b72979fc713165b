package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meikuraledutech/agentflow"
)

const openWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

type owmResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Weather reports current conditions from OpenWeatherMap.
type Weather struct {
	base
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewWeather(s agentflow.ToolSettings, env Env) (Tool, error) {
	key := env.credential(s)
	if key == "" {
		return nil, fmt.Errorf("%w: weather api key", ErrMissingCredential)
	}
	return &Weather{
		base:     base{name: s.ProviderID, actions: []string{ActionProcess}},
		client:   env.client(),
		endpoint: env.endpoint("weather", openWeatherURL),
		apiKey:   key,
	}, nil
}

// Invoke takes "location", falling back to the raw "input".
func (w *Weather) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	if action != ActionProcess {
		return Result{}, w.unsupported(action)
	}
	location := params.String("location")
	if location == "" {
		location = params.String("input")
	}
	if location == "" {
		return Result{}, fmt.Errorf("%w: location", ErrMissingParam)
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("weather: create request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("weather: unexpected status code: %d", resp.StatusCode)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("weather: parse response: %w", err)
	}

	desc := ""
	if len(body.Weather) > 0 {
		desc = body.Weather[0].Description
	}
	text := fmt.Sprintf("Weather in %s, %s: %s, %.1f°C (feels like %.1f°C), humidity %d%%, wind %.1f m/s",
		body.Name, body.Sys.Country, desc, body.Main.Temp, body.Main.FeelsLike, body.Main.Humidity, body.Wind.Speed)
	return Result{Tool: w.name, Text: text}, nil
}
