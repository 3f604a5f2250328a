package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolamba/backend/internal/domain"
	"github.com/kolamba/backend/internal/schedule"
)

func tourFixture() domain.Tour {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	stopID := uuid.New()
	return domain.Tour{
		ID:          id,
		PerformerID: performerActor.UserID,
		TourDetails: domain.TourDetails{
			Name:      "Spring Run",
			StartDate: &start,
			EndDate:   &end,
		},
		Status:          domain.TourDraft,
		EfficiencyScore: 100,
		ConfirmedShows:  1,
		Stops: []domain.TourStop{{
			ID:             stopID,
			TourID:         id,
			Date:           start,
			City:           "Denver",
			SequenceOrder:  1,
			PerformanceFee: dec(2500),
			NetRevenue:     dec(2500),
			Status:         domain.StopConfirmed,
		}},
		Warnings: []domain.Violation{{
			Kind:    domain.NoticeDistanceUnknown,
			StopID:  &stopID,
			Message: "travel time unknown",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateTour_201(t *testing.T) {
	fixture := tourFixture()
	var got domain.TourDetails
	var gotPerformer uuid.UUID
	svc := &mockTourServicer{
		create: func(_ context.Context, _ domain.Actor, performerID uuid.UUID, d domain.TourDetails) (domain.Tour, error) {
			got, gotPerformer = d, performerID
			return fixture, nil
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodPost, "/tours", map[string]any{
		"name":       "Spring Run",
		"start_date": "2026-03-02",
		"end_date":   "2026-03-31",
		"constraints": map[string]any{
			"max_travel_hours":   6.5,
			"max_shows_per_week": 5,
			"rest_day_rule":      "after_3_consecutive",
			"min_net_profit":     "5000",
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uuid.Nil, gotPerformer)
	assert.Equal(t, "Spring Run", got.Name)
	require.NotNil(t, got.Constraints.MaxTravelHours)
	assert.InDelta(t, 6.5, *got.Constraints.MaxTravelHours, 1e-9)
	assert.Equal(t, domain.RestDayAfter3Consecutive, got.Constraints.RestDayRule)
	assert.Equal(t, "5000", got.Constraints.MinNetProfit.String())

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.ID.String(), resp["id"])
	assert.EqualValues(t, 100, resp["efficiency_score"])
	assert.Equal(t, "2026-03-02", resp["start_date"])
	stops := resp["stops"].([]any)
	require.Len(t, stops, 1)
	assert.Equal(t, "Confirmed", stops[0].(map[string]any)["status_label"])
	warnings := resp["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.Equal(t, "distance_unknown", warnings[0].(map[string]any)["kind"])
}

func TestCreateTour_422(t *testing.T) {
	h := newHTTPHandler(nil, &mockTourServicer{}, nil)

	rec := call(t, h, performerActor, http.MethodPost, "/tours", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error.Message, "name: min=2")

	rec = call(t, h, performerActor, http.MethodPost, "/tours", map[string]any{
		"name":        "Spring Run",
		"constraints": map[string]any{"max_travel_hours": -1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetTour_RedactedFieldsOmitted(t *testing.T) {
	fixture := tourFixture()
	fixture.Stops[0].PerformanceFee = nil
	fixture.Stops[0].NetRevenue = nil
	fixture.Warnings = nil
	svc := &mockTourServicer{
		get: func(context.Context, domain.Actor, uuid.UUID) (domain.Tour, error) { return fixture, nil },
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), hostActor, http.MethodGet, "/tours/"+fixture.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "performance_fee")
	assert.NotContains(t, rec.Body.String(), "net_revenue")
	assert.Contains(t, rec.Body.String(), `"warnings":[]`)
}

func TestAddStop_201(t *testing.T) {
	fixture := tourFixture()
	bookingID := uuid.New()
	var got domain.StopInput
	svc := &mockTourServicer{
		addStop: func(_ context.Context, _ domain.Actor, tourID uuid.UUID, in domain.StopInput) (domain.Tour, domain.TourStop, error) {
			assert.Equal(t, fixture.ID, tourID)
			got = in
			return fixture, fixture.Stops[0], nil
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodPost,
		"/tours/"+fixture.ID.String()+"/stops", map[string]any{"booking_id": bookingID})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got.BookingID)
	assert.Equal(t, bookingID, *got.BookingID)
	assert.True(t, got.Date.IsZero(), "date is left for the booking to fill")

	var resp struct {
		Stop map[string]any `json:"stop"`
		Tour map[string]any `json:"tour"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, fixture.Stops[0].ID.String(), resp.Stop["id"])
	assert.Equal(t, "2500", resp.Stop["performance_fee"])
	assert.Equal(t, fixture.ID.String(), resp.Tour["id"])
}

func TestAddStop_422_DateOutOfRange(t *testing.T) {
	svc := &mockTourServicer{
		addStop: func(context.Context, domain.Actor, uuid.UUID, domain.StopInput) (domain.Tour, domain.TourStop, error) {
			return domain.Tour{}, domain.TourStop{}, fmt.Errorf("service.TourService.AddStop: %w: 2026-05-01 is outside 2026-03-02..2026-03-31", domain.ErrDateOutOfRange)
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodPost,
		"/tours/"+uuid.NewString()+"/stops", map[string]any{"date": "2026-05-01", "city": "Reno"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "date_out_of_range", body.Error.Code)
	assert.Equal(t, "2026-05-01 is outside 2026-03-02..2026-03-31", body.Error.Message)
}

func TestRemoveStop_PathIDs(t *testing.T) {
	tourID, stopID := uuid.New(), uuid.New()
	svc := &mockTourServicer{
		removeStop: func(_ context.Context, _ domain.Actor, gotTour, gotStop uuid.UUID) (domain.Tour, error) {
			assert.Equal(t, tourID, gotTour)
			assert.Equal(t, stopID, gotStop)
			return tourFixture(), nil
		},
	}
	h := newHTTPHandler(nil, svc, nil)

	rec := call(t, h, performerActor, http.MethodDelete, fmt.Sprintf("/tours/%s/stops/%s", tourID, stopID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, performerActor, http.MethodDelete, fmt.Sprintf("/tours/%s/stops/nope", tourID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReorderStops(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	svc := &mockTourServicer{
		reorder: func(_ context.Context, _ domain.Actor, _ uuid.UUID, got []uuid.UUID) (domain.Tour, error) {
			assert.Equal(t, ids, got)
			return tourFixture(), nil
		},
	}
	h := newHTTPHandler(nil, svc, nil)
	path := "/tours/" + uuid.NewString() + "/stops/order"

	rec := call(t, h, performerActor, http.MethodPut, path, map[string]any{"stop_ids": ids})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, performerActor, http.MethodPut, path, map[string]any{"stop_ids": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransitionTour_409(t *testing.T) {
	svc := &mockTourServicer{
		transition: func(_ context.Context, _ domain.Actor, _ uuid.UUID, to domain.TourStatus) (domain.Tour, error) {
			assert.Equal(t, domain.TourCompleted, to)
			return domain.Tour{}, fmt.Errorf("%w: draft → completed", domain.ErrInvalidTransition)
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodPost,
		"/tours/"+uuid.NewString()+"/status", map[string]any{"status": "completed"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListTours(t *testing.T) {
	svc := &mockTourServicer{
		list: func(_ context.Context, _ domain.Actor, status domain.TourStatus, p domain.PaginationParams) ([]domain.Tour, int64, error) {
			assert.Equal(t, domain.TourStatus(""), status)
			assert.Equal(t, 100, p.Limit, "limit is capped")
			return []domain.Tour{tourFixture()}, 1, nil
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodGet, "/tours?limit=500", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestListSuggestions(t *testing.T) {
	fixture := tourFixture()
	bookingID := uuid.New()
	lat, lng := 30.2672, -97.7431
	var gotOpts schedule.SuggestOptions
	svc := &mockTourServicer{
		suggestions: func(_ context.Context, _ domain.Actor, tourID uuid.UUID, opts schedule.SuggestOptions) ([]domain.StopInput, error) {
			assert.Equal(t, fixture.ID, tourID)
			gotOpts = opts
			return []domain.StopInput{{
				BookingID: &bookingID, Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), City: "Austin",
				Latitude: &lat, Longitude: &lng, PerformanceFee: dec(900), Status: domain.StopRecommended,
			}}, nil
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodGet,
		"/tours/"+fixture.ID.String()+"/suggestions?max_distance_km=250&min_bookings=3", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schedule.SuggestOptions{MaxDistanceKM: 250, MinBookings: 3}, gotOpts)
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, bookingID.String(), resp.Data[0]["booking_id"])
	assert.Equal(t, "2026-03-10", resp.Data[0]["date"])
	assert.Equal(t, "recommended", resp.Data[0]["status"])
	assert.Equal(t, "900", resp.Data[0]["performance_fee"])
}

func TestListSuggestions_BadQuery(t *testing.T) {
	h := newHTTPHandler(nil, &mockTourServicer{}, nil)
	base := "/tours/" + uuid.NewString() + "/suggestions"

	for _, q := range []string{"?max_distance_km=-5", "?max_distance_km=far", "?min_bookings=0"} {
		rec := call(t, h, performerActor, http.MethodGet, base+q, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}
}

func TestApplySuggestions(t *testing.T) {
	fixture := tourFixture()
	bookingID := uuid.New()
	recommended := domain.TourStop{
		ID: uuid.New(), TourID: fixture.ID, BookingID: &bookingID, Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		City: "Austin", SequenceOrder: 2, Status: domain.StopRecommended,
	}
	fixture.Stops = append(fixture.Stops, recommended)
	svc := &mockTourServicer{
		applySuggestions: func(_ context.Context, _ domain.Actor, _ uuid.UUID, opts schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error) {
			assert.Zero(t, opts, "absent query parameters leave defaults to the scheduler")
			return fixture, []domain.TourStop{recommended}, nil
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), performerActor, http.MethodPost,
		"/tours/"+fixture.ID.String()+"/suggestions", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Stops []map[string]any `json:"stops"`
		Tour  map[string]any   `json:"tour"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Stops, 1)
	assert.Equal(t, "Recommended", resp.Stops[0]["status_label"])
	assert.Len(t, resp.Tour["stops"], 2)
}

func TestApplySuggestions_403(t *testing.T) {
	svc := &mockTourServicer{
		applySuggestions: func(context.Context, domain.Actor, uuid.UUID, schedule.SuggestOptions) (domain.Tour, []domain.TourStop, error) {
			return domain.Tour{}, nil, fmt.Errorf("service.TourService.ApplySuggestions: %w: only the tour's performer can change it", domain.ErrForbidden)
		},
	}

	rec := call(t, newHTTPHandler(nil, svc, nil), hostActor, http.MethodPost,
		"/tours/"+uuid.NewString()+"/suggestions", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
