package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/flowcharts/internal/database"
)

// chartRequest is the body of create and update calls. Data stays raw; the
// service never looks inside it.
type chartRequest struct {
	Name *string         `json:"name"`
	Data json.RawMessage `json:"data"`
}

func (req *chartRequest) name() string {
	if req.Name == nil {
		return ""
	}
	return *req.Name
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeChartRequest parses the body as JSON whatever the declared content type.
// The body must hold exactly one JSON value; anything but whitespace after it
// is rejected.
func decodeChartRequest(r *http.Request) (*chartRequest, error) {
	var req chartRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return &req, nil
}

// chartID parses the {id} URL parameter. The route only matches digits, so
// a failure here means the value does not fit in an int64.
func chartID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ListCharts returns the summaries of all charts, newest first
func (h *Handlers) ListCharts(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conn(w, r)
	if !ok {
		return
	}

	charts, err := database.ListCharts(r.Context(), c)
	if err != nil {
		h.storageError(w, err, "Failed to list charts")
		return
	}

	h.jsonResponse(w, http.StatusOK, charts)
}

// GetChart returns one chart with its data
func (h *Handlers) GetChart(w http.ResponseWriter, r *http.Request) {
	id, ok := chartID(r)
	if !ok {
		h.jsonError(w, "Chart not found", http.StatusNotFound)
		return
	}

	c, ok := h.conn(w, r)
	if !ok {
		return
	}

	chart, err := database.GetChart(r.Context(), c, id)
	if errors.Is(err, database.ErrChartNotFound) {
		h.jsonError(w, "Chart not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.storageError(w, err, "Failed to get chart")
		return
	}

	h.jsonResponse(w, http.StatusOK, chart)
}

// CreateChart stores a new chart and returns its id
func (h *Handlers) CreateChart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChartRequest(r)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected chart create body")
		h.jsonError(w, "Request body must be a JSON object", http.StatusBadRequest)
		return
	}

	c, ok := h.conn(w, r)
	if !ok {
		return
	}

	id, err := database.CreateChart(r.Context(), c, req.name(), req.Data)
	if err != nil {
		h.storageError(w, err, "Failed to create chart")
		return
	}

	log.Info().Int64("chart_id", id).Str("name", req.name()).Msg("Chart created")
	h.jsonResponse(w, http.StatusCreated, map[string]int64{"id": id})
}

// UpdateChart overwrites the name and data of a chart. An omitted name is
// stored as empty; an unknown id still reports success.
func (h *Handlers) UpdateChart(w http.ResponseWriter, r *http.Request) {
	id, ok := chartID(r)
	if !ok {
		h.jsonError(w, "Chart not found", http.StatusNotFound)
		return
	}

	req, err := decodeChartRequest(r)
	if err != nil {
		log.Debug().Err(err).Int64("chart_id", id).Msg("Rejected chart update body")
		h.jsonError(w, "Request body must be a JSON object", http.StatusBadRequest)
		return
	}

	c, ok := h.conn(w, r)
	if !ok {
		return
	}

	if err := database.UpdateChart(r.Context(), c, id, req.name(), req.Data); err != nil {
		h.storageError(w, err, "Failed to update chart")
		return
	}

	log.Info().Int64("chart_id", id).Msg("Chart updated")
	h.jsonStatus(w, "updated")
}

// DeleteChart removes a chart. Deleting an unknown id reports success.
func (h *Handlers) DeleteChart(w http.ResponseWriter, r *http.Request) {
	id, ok := chartID(r)
	if !ok {
		h.jsonError(w, "Chart not found", http.StatusNotFound)
		return
	}

	c, ok := h.conn(w, r)
	if !ok {
		return
	}

	if err := database.DeleteChart(r.Context(), c, id); err != nil {
		h.storageError(w, err, "Failed to delete chart")
		return
	}

	log.Info().Int64("chart_id", id).Msg("Chart deleted")
	h.jsonStatus(w, "deleted")
}

// storageError maps repository errors to responses. Validation problems are
// the caller's fault; everything else, corrupt rows included, is a server fault.
func (h *Handlers) storageError(w http.ResponseWriter, err error, msg string) {
	var vErr *database.ValidationError
	if errors.As(err, &vErr) {
		h.jsonError(w, vErr.Message, http.StatusBadRequest)
		return
	}

	if errors.Is(err, database.ErrCorruptChart) {
		log.Error().Err(err).Msg("Stored chart data is corrupt")
	} else {
		log.Error().Err(err).Msg(msg)
	}
	h.jsonError(w, "Internal server error", http.StatusInternalServerError)
}
