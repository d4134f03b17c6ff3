package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/reshmi-chandran/graph-api-mvp/internal/rest"
	"github.com/reshmi-chandran/graph-api-mvp/internal/utils"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/credential"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/upstream"
	"github.com/reshmi-chandran/graph-api-mvp/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service        Service
	clock          utils.Clock
	requestTimeout time.Duration
}

type MetricsDTO struct {
	TotalMeetings          int      `json:"totalMeetings"`
	TotalDurationMinutes   float64  `json:"totalDurationMinutes"`
	AvgDurationMinutes     float64  `json:"avgDurationMinutes"`
	MedianGapMinutes       *float64 `json:"medianGapMinutes"`
	MaxGapMinutes          *float64 `json:"maxGapMinutes"`
	MinGapMinutes          *float64 `json:"minGapMinutes"`
	MeetingFrequencyPerDay float64  `json:"meetingFrequencyPerDay"`
	BlobValue              int      `json:"blobValue"`
	Partial                bool     `json:"partial"`
	Warnings               []string `json:"warnings"`
}

func NewHandler(service Service, clock utils.Clock, requestTimeout time.Duration) *Handler {
	return &Handler{
		service:        service,
		clock:          clock,
		requestTimeout: requestTimeout,
	}
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	startString := r.URL.Query().Get("start")
	endString := r.URL.Query().Get("end")

	// Missing bounds default to a 7-day window ending now.
	end := h.clock.Now()
	if endString != "" {
		parsed, err := time.Parse(time.RFC3339, endString)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end (date) format", "'end' must be in RFC3339 format")
			return
		}
		end = parsed
	}
	start := end.Add(-MaxWindow)
	if startString != "" {
		parsed, err := time.Parse(time.RFC3339, startString)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start (date) format", "'start' must be in RFC3339 format")
			return
		}
		start = parsed
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	result, err := h.service.GetMetrics(ctx, Window{Start: start, End: end})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resultToDTO(result)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	var throttled *upstream.ThrottledError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "Invalid time window", validation.Reason)
	case errors.Is(err, user.ErrNoUser):
		writeError(w, http.StatusUnauthorized, "No established session", "request is missing an authenticated user")
	case errors.Is(err, credential.ErrNoCredential), errors.Is(err, upstream.ErrAuthRejected):
		writeError(w, http.StatusForbidden, "Calendar credential rejected", "re-authentication with the calendar provider is required")
	case errors.Is(err, ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Metrics computation timed out", "the computation may still complete for later requests")
	case errors.As(err, &throttled):
		writeError(w, http.StatusServiceUnavailable, "Calendar provider is throttling requests", err.Error())
	default:
		log.Errorf("failed to compute metrics: %v", err)
		writeError(w, http.StatusBadGateway, "Calendar provider unavailable", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   message,
		Details: details,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func resultToDTO(r Result) MetricsDTO {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return MetricsDTO{
		TotalMeetings:          r.TotalMeetings,
		TotalDurationMinutes:   r.TotalDurationMinutes,
		AvgDurationMinutes:     r.AvgDurationMinutes,
		MedianGapMinutes:       r.MedianGapMinutes,
		MaxGapMinutes:          r.MaxGapMinutes,
		MinGapMinutes:          r.MinGapMinutes,
		MeetingFrequencyPerDay: r.MeetingFrequencyPerDay,
		BlobValue:              r.BlobValue,
		Partial:                r.Partial,
		Warnings:               warnings,
	}
}
