package models

// WeatherSummary is the normalized forecast record handed to the recommendation
// stage. Numeric fields are pointers so that values the provider omitted stay
// absent (null in JSON) instead of reading as zero.
type WeatherSummary struct {
	Location  string        `json:"location"`
	LocalTime string        `json:"local_time"`
	Current   Current       `json:"current"`
	Forecast  []ForecastDay `json:"forecast"`
	Alerts    []Alert       `json:"alerts,omitempty"`
}

// Current is the current-conditions snapshot.
type Current struct {
	TempC        *float64 `json:"temp_c"`
	TempF        *float64 `json:"temp_f"`
	Condition    string   `json:"condition"`
	WindKph      *float64 `json:"wind_kph"`
	WindMph      *float64 `json:"wind_mph"`
	Humidity     *float64 `json:"humidity"`
	FeelsLikeC   *float64 `json:"feelslike_c"`
	FeelsLikeF   *float64 `json:"feelslike_f"`
	UV           *float64 `json:"uv"`
	VisibilityKm *float64 `json:"visibility_km"`
}

// ForecastDay is one day of the multi-day forecast.
type ForecastDay struct {
	Date        string   `json:"date"`
	MaxTempC    *float64 `json:"max_temp_c"`
	MinTempC    *float64 `json:"min_temp_c"`
	MaxTempF    *float64 `json:"max_temp_f"`
	MinTempF    *float64 `json:"min_temp_f"`
	Condition   string   `json:"condition"`
	RainChance  *float64 `json:"rain_chance"`
	SnowChance  *float64 `json:"snow_chance"`
	MaxWindKph  *float64 `json:"max_wind_kph"`
	AvgHumidity *float64 `json:"avg_humidity"`
	UV          *float64 `json:"uv"`
}

// Alert is an active weather alert reported by the provider.
type Alert struct {
	Headline string `json:"headline"`
	Severity string `json:"severity"`
	Event    string `json:"event"`
}

// IsZero reports whether nothing has been fetched into the summary.
func (w *WeatherSummary) IsZero() bool {
	return w == nil || (w.Location == "" && w.LocalTime == "" && w.Current == (Current{}) && len(w.Forecast) == 0 && len(w.Alerts) == 0)
}

// Float returns a pointer to v. Used by tests and fake providers to build summaries.
func Float(v float64) *float64 {
	return &v
}
