package fetch

import (
	"context"
	"fmt"
)

const forecastEndpoint = "https://api.open-meteo.com/v1/forecast"

// hourlyWindow limits the hourly forecast returned to callers.
const hourlyWindow = 24

// WMO weather interpretation codes.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// WeatherCodeDescription maps a WMO code to a human-readable description.
func WeatherCodeDescription(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "Unknown"
}

// CurrentConditions is the present-moment snapshot.
type CurrentConditions struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Description string  `json:"description"`
}

// HourlyPoint is one hour of forecast.
type HourlyPoint struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}

// DailyPoint is one day of forecast.
type DailyPoint struct {
	Date        string  `json:"date"`
	TempMax     float64 `json:"tempMax"`
	TempMin     float64 `json:"tempMin"`
	Description string  `json:"description"`
}

// WeatherReport is the full forecast for a resolved location.
type WeatherReport struct {
	Location Location          `json:"location"`
	Current  CurrentConditions `json:"current"`
	Hourly   []HourlyPoint     `json:"hourly"`
	Daily    []DailyPoint      `json:"daily"`
}

// WeatherClient resolves a place and fetches its forecast from Open-Meteo.
type WeatherClient struct {
	geo      *GeoClient
	Endpoint string
	http     *HTTPClient
}

func NewWeatherClient(geo *GeoClient, httpc *HTTPClient) *WeatherClient {
	return &WeatherClient{geo: geo, Endpoint: forecastEndpoint, http: httpc}
}

// Forecast geocodes place then fetches current, 24h hourly, and daily
// conditions. Any stage failure surfaces as an error; callers wrap it into
// the visualization error envelope.
func (w *WeatherClient) Forecast(ctx context.Context, place string) (WeatherReport, error) {
	loc, err := w.geo.Geocode(ctx, place)
	if err != nil {
		return WeatherReport{}, fmt.Errorf("weather: %w", err)
	}

	u := fmt.Sprintf("%s?latitude=%f&longitude=%f"+
		"&current=temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m"+
		"&hourly=temperature_2m,weather_code"+
		"&daily=weather_code,temperature_2m_max,temperature_2m_min"+
		"&forecast_days=7&timezone=auto", w.Endpoint, loc.Lat, loc.Lng)

	var raw struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			FeelsLike   float64 `json:"apparent_temperature"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
		Hourly struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			WeatherCode []int     `json:"weather_code"`
		} `json:"hourly"`
		Daily struct {
			Time        []string  `json:"time"`
			WeatherCode []int     `json:"weather_code"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
		} `json:"daily"`
	}
	if err := w.http.DoJSON(ctx, "GET", u, nil, nil, &raw); err != nil {
		return WeatherReport{}, fmt.Errorf("weather forecast: %w", err)
	}

	report := WeatherReport{
		Location: loc,
		Current: CurrentConditions{
			Temperature: raw.Current.Temperature,
			FeelsLike:   raw.Current.FeelsLike,
			Humidity:    raw.Current.Humidity,
			WindSpeed:   raw.Current.WindSpeed,
			Description: WeatherCodeDescription(raw.Current.WeatherCode),
		},
	}

	for i, ts := range raw.Hourly.Time {
		if i >= hourlyWindow || i >= len(raw.Hourly.Temperature) || i >= len(raw.Hourly.WeatherCode) {
			break
		}
		report.Hourly = append(report.Hourly, HourlyPoint{
			Time:        ts,
			Temperature: raw.Hourly.Temperature[i],
			Description: WeatherCodeDescription(raw.Hourly.WeatherCode[i]),
		})
	}
	for i, d := range raw.Daily.Time {
		if i >= len(raw.Daily.TempMax) || i >= len(raw.Daily.TempMin) || i >= len(raw.Daily.WeatherCode) {
			break
		}
		report.Daily = append(report.Daily, DailyPoint{
			Date:        d,
			TempMax:     raw.Daily.TempMax[i],
			TempMin:     raw.Daily.TempMin[i],
			Description: WeatherCodeDescription(raw.Daily.WeatherCode[i]),
		})
	}
	return report, nil
}
