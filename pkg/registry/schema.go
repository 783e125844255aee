// pkg/registry/schema.go
package registry

type FacilityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Facilities  []Facility `json:"facilities"`
}

type Facility struct {
	Key                 string      `json:"key"`
	OfficialName        string      `json:"officialName"`
	Location            string      `json:"location"`
	Type                string      `json:"type"`
	Established         string      `json:"established,omitempty"`
	Status              string      `json:"status"`
	VerificationSources []string    `json:"verificationSources,omitempty"`
	Coordinates         Coordinates `json:"coordinates,omitempty"`
	PostalCode          string      `json:"postalCode,omitempty"`
	Phone               string      `json:"phone,omitempty"`
	Website             string      `json:"website,omitempty"`
	Services            []string    `json:"services,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}
