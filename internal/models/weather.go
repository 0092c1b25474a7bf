package models

// WeatherResponse is the current-conditions payload returned by the provider
// and served to callers. Every provider field is a pointer: nil means the
// provider omitted it, which is distinct from a reported zero.
type WeatherResponse struct {
	Location *Location `json:"location"`
	Current  *Current  `json:"current"`
}

// Location describes where the observation was taken.
type Location struct {
	Name      *string  `json:"name"`
	Country   *string  `json:"country"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	TzID      *string  `json:"tz_id"`
	Localtime *string  `json:"localtime"`
}

// Current holds the observed conditions.
type Current struct {
	TempC      *float64   `json:"temp_c"`
	TempF      *float64   `json:"temp_f"`
	Humidity   *int       `json:"humidity"`
	WindKph    *float64   `json:"wind_kph"`
	Condition  *Condition `json:"condition"`
	FeelsLikeC *float64   `json:"feelslike_c"`
	IsDay      *int       `json:"is_day"`
}

// Condition is the provider's textual condition descriptor.
type Condition struct {
	Text *string `json:"text"`
	Icon *string `json:"icon"`
	Code *int    `json:"code"`
}

// Clone returns a deep copy, so the result shares no pointers with r.
func (r WeatherResponse) Clone() WeatherResponse {
	var out WeatherResponse
	if r.Location != nil {
		l := Location{
			Name:      clonePtr(r.Location.Name),
			Country:   clonePtr(r.Location.Country),
			Lat:       clonePtr(r.Location.Lat),
			Lon:       clonePtr(r.Location.Lon),
			TzID:      clonePtr(r.Location.TzID),
			Localtime: clonePtr(r.Location.Localtime),
		}
		out.Location = &l
	}
	if r.Current != nil {
		c := Current{
			TempC:      clonePtr(r.Current.TempC),
			TempF:      clonePtr(r.Current.TempF),
			Humidity:   clonePtr(r.Current.Humidity),
			WindKph:    clonePtr(r.Current.WindKph),
			FeelsLikeC: clonePtr(r.Current.FeelsLikeC),
			IsDay:      clonePtr(r.Current.IsDay),
		}
		if cond := r.Current.Condition; cond != nil {
			c.Condition = &Condition{
				Text: clonePtr(cond.Text),
				Icon: clonePtr(cond.Icon),
				Code: clonePtr(cond.Code),
			}
		}
		out.Current = &c
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
