package domain

// ItineraryRow is a single row in a tour itinerary export.
// It is a flat, denormalized view: one row per stop, with tour fields repeated
// for every stop. A tour with no stops yields one row with empty stop fields.
//
// Money columns are pre-formatted with two decimals, or empty when unknown.
// Financial columns are blank for actors without ViewFinancials.
type ItineraryRow struct {
	// Tour fields, repeated on every row.
	TourID    string
	TourName  string
	TourStart string // "2006-01-02", empty when unset
	TourEnd   string

	// Stop fields.
	Sequence       int
	Date           string
	City           string
	VenueName      string
	Status         string
	TravelFromPrev string
	PerformanceFee string
	TravelCost     string
	Accommodation  string
	NetRevenue     string
	Warnings       []string // violation kinds attached to this stop
}

// NewItinerary flattens a tour into export rows. Stop-level warnings are
// copied onto their rows by kind.
func NewItinerary(t Tour, financials bool) []ItineraryRow {
	base := ItineraryRow{
		TourID:    t.ID.String(),
		TourName:  t.Name,
		TourStart: formatDate(t.StartDate),
		TourEnd:   formatDate(t.EndDate),
	}
	if len(t.Stops) == 0 {
		return []ItineraryRow{base}
	}

	warnings := make(map[string][]string)
	for _, v := range t.Warnings {
		if v.StopID != nil {
			k := v.StopID.String()
			warnings[k] = append(warnings[k], string(v.Kind))
		}
	}

	rows := make([]ItineraryRow, 0, len(t.Stops))
	for _, s := range t.Stops {
		r := base
		r.Sequence = s.SequenceOrder
		r.Date = s.Date.Format("2006-01-02")
		r.City = s.City
		r.VenueName = s.VenueName
		r.Status = string(s.Status)
		r.TravelFromPrev = s.TravelFromPrev
		r.Warnings = warnings[s.ID.String()]
		if financials {
			r.PerformanceFee = formatAmount(s.PerformanceFee)
			r.TravelCost = formatAmount(s.TravelCost)
			r.Accommodation = formatAmount(s.AccommodationCost)
			r.NetRevenue = formatAmount(s.NetRevenue)
		}
		rows = append(rows, r)
	}
	return rows
}
