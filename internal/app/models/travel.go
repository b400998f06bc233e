package models

// Preference is one accepted travel request. The wire field names follow the
// planning service contract (lieuDepart/dateDepart/dateRetour).
type Preference struct {
	ID             int64    `json:"id"`
	DeparturePlace string   `json:"lieuDepart"`
	Cities         []string `json:"cities"`
	DepartureDate  string   `json:"dateDepart"`
	ReturnDate     string   `json:"dateRetour"`
	Budget         float64  `json:"budget"`
}

// Hotel is the chosen hotel for one city stop.
type Hotel struct {
	Name          string  `json:"name"`
	PricePerNight float64 `json:"pricePerNight"`
}

// Activity is a single priced activity within a city stop.
type Activity struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CityStop is one city visit inside a generated plan.
type CityStop struct {
	City       string     `json:"city"`
	Hotel      Hotel      `json:"hotel"`
	Activities []Activity `json:"activities"`
	DaysSpent  int        `json:"days_spent"`
}

// CostBreakdown splits a plan's total cost. The subtotals sum to TotalCost
// within rounding; the planning service owns that invariant.
type CostBreakdown struct {
	HotelsTotal     float64 `json:"hotels_total"`
	ActivitiesTotal float64 `json:"activities_total"`
	TransportTotal  float64 `json:"transport_total"`
}

// GeneratedPlan is one candidate itinerary returned for a preference. Plans
// are addressed by position within the current plan set.
type GeneratedPlan struct {
	Stops          []CityStop    `json:"plan"`
	TotalCost      float64       `json:"total_cost"`
	TotalDaysSpent int           `json:"total_days_spent"`
	Breakdown      CostBreakdown `json:"breakdown"`
}

// Favorite is a server-side bookmark of a generated plan. PreferenceID
// travels as "idPlan" on the wire. The embedded plan snapshot keeps favorites
// viewable after the originating preference is superseded.
type Favorite struct {
	ID           int64         `json:"id"`
	PreferenceID int64         `json:"idPlan"`
	Plan         GeneratedPlan `json:"plan"`
}

// CreatePreferenceInput carries a preference submission into the state
// manager. Budget arrives as the raw form value and is coerced numerically
// before transmission; field validation beyond that belongs to the UI layer
// and, authoritatively, to the planning service.
type CreatePreferenceInput struct {
	DeparturePlace string
	Cities         []string
	DepartureDate  string
	ReturnDate     string
	Budget         string
}

// PlanningResponse is the planning service's success envelope: the confirmed
// preference plus the generated plans that belong to it.
type PlanningResponse struct {
	Message    string          `json:"message"`
	Preference Preference      `json:"preference"`
	Plans      []GeneratedPlan `json:"plans"`
}

// City is one entry of the remote city catalog.
type City struct {
	ID     int64   `json:"idVille"`
	Name   string  `json:"name"`
	Budget float64 `json:"budget"`
}
