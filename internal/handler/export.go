package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/kolamba/backend/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"tour_id", "tour_name", "tour_start_date", "tour_end_date",
	"sequence", "date", "city", "venue_name", "status", "travel_from_prev",
	"performance_fee", "travel_cost", "accommodation_cost", "net_revenue", "warnings",
}

// itineraryRow is the JSON form of domain.ItineraryRow. Empty values are omitted.
type itineraryRow struct {
	TourID         string   `json:"tour_id"`
	TourName       string   `json:"tour_name"`
	TourStart      string   `json:"tour_start_date,omitempty"`
	TourEnd        string   `json:"tour_end_date,omitempty"`
	Sequence       int      `json:"sequence,omitempty"`
	Date           string   `json:"date,omitempty"`
	City           string   `json:"city,omitempty"`
	VenueName      string   `json:"venue_name,omitempty"`
	Status         string   `json:"status,omitempty"`
	TravelFromPrev string   `json:"travel_from_prev,omitempty"`
	PerformanceFee string   `json:"performance_fee,omitempty"`
	TravelCost     string   `json:"travel_cost,omitempty"`
	Accommodation  string   `json:"accommodation_cost,omitempty"`
	NetRevenue     string   `json:"net_revenue,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// GetItinerary handles GET /tours/{id}/itinerary.
// It returns one flat row per stop. Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetItinerary(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "csv" && format != "json" {
		requestError(w, "format must be csv or json")
		return
	}

	rows, err := s.tours.Itinerary(r.Context(), a, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="itinerary-`+id.String()+`.csv"`)
		body := buildCSV(rows)
		w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = body.WriteTo(w)
		return
	}
	out := make([]itineraryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, itineraryRow(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// buildCSV encodes domain rows as CSV.
// Warnings within a row are pipe-separated ("|") to keep each stop on a single CSV line.
func buildCSV(rows []domain.ItineraryRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(rowToCSVRecord(r))
	}
	w.Flush()
	return &buf
}

// rowToCSVRecord encodes a domain.ItineraryRow as a flat string slice.
// The sequence column is empty for the placeholder row of a tour without stops.
func rowToCSVRecord(r domain.ItineraryRow) []string {
	seq := ""
	if r.Sequence > 0 {
		seq = strconv.Itoa(r.Sequence)
	}
	return []string{
		r.TourID,
		r.TourName,
		r.TourStart,
		r.TourEnd,
		seq,
		r.Date,
		r.City,
		r.VenueName,
		r.Status,
		r.TravelFromPrev,
		r.PerformanceFee,
		r.TravelCost,
		r.Accommodation,
		r.NetRevenue,
		strings.Join(r.Warnings, "|"),
	}
}
