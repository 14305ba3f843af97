package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"wx-data-platform/internal/models"
	"wx-data-platform/internal/repository"
	"wx-data-platform/internal/services"
	"wx-data-platform/pkg/logging"
	"wx-data-platform/pkg/metrics"
)

// Route paths. Both the trailing slash form and the bare form are served.
const (
	ObservationsPath = "/api/weather/"
	StatisticsPath   = "/api/weather/stats/"
	HealthPath       = "/health"
	OpenAPIPath      = "/api/docs/openapi.json"
	DocsPath         = "/api/docs"
)

// RequestIDHeader carries the per-request id in both directions
const RequestIDHeader = "X-Request-ID"

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	weatherService *services.WeatherService
	statsService   *services.StatisticsService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	statsService *services.StatisticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService: weatherService,
		statsService:   statsService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GetObservations handles GET /api/weather/
func (h *WeatherHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(ObservationsPath).Observe(time.Since(startTime).Seconds())
	}()

	query := r.URL.Query()

	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		h.sendValidationError(w, ObservationsPath, r.Method, err)
		return
	}

	filter := repository.ObservationFilter{
		StationID: optional(query.Get("StationID")),
		Date:      optional(query.Get("Date")),
		Limit:     limit,
		Offset:    offset,
	}

	observations, err := h.weatherService.ListObservations(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OBSERVATIONS_ERROR] Failed to get observations", logging.Fields{
			"limit":  limit,
			"offset": offset,
		}, err)
		h.metrics.RecordAPIError("internal_error", ObservationsPath)
		h.sendError(w, ObservationsPath, r.Method, "failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest(ObservationsPath, r.Method, "200")
	h.sendJSON(w, observations, http.StatusOK)
}

// GetStatistics handles GET /api/weather/stats/
func (h *WeatherHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(StatisticsPath).Observe(time.Since(startTime).Seconds())
	}()

	query := r.URL.Query()

	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		h.sendValidationError(w, StatisticsPath, r.Method, err)
		return
	}

	filter := repository.StatisticsFilter{
		StationID: optional(query.Get("StationID")),
		Year:      optional(query.Get("Year")),
		Limit:     limit,
		Offset:    offset,
	}

	stats, err := h.statsService.ListYearlyStats(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATISTICS_ERROR] Failed to get statistics", logging.Fields{
			"limit":  limit,
			"offset": offset,
		}, err)
		h.metrics.RecordAPIError("internal_error", StatisticsPath)
		h.sendError(w, StatisticsPath, r.Method, "failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest(StatisticsPath, r.Method, "200")
	h.sendJSON(w, stats, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.weatherService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Store health check failed", logging.Fields{
			"reason": err.Error(),
		})
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status["status"]})
	h.sendJSON(w, status, code)
}

// RequestID tags every request with an id taken from X-Request-ID or a new
// uuid, stores it in the request context and echoes it in the response.
func (h *WeatherHandler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		h.metrics.APIInFlight.Inc()
		defer h.metrics.APIInFlight.Dec()

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)

		h.logger.Debug(ctx, "[API_REQUEST] Request received", logging.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.RawQuery,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RegisterRoutes registers all weather API routes and the request id middleware
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.Use(h.RequestID)

	router.HandleFunc(ObservationsPath, h.GetObservations).Methods(http.MethodGet)
	router.HandleFunc(trimSlash(ObservationsPath), h.GetObservations).Methods(http.MethodGet)
	router.HandleFunc(StatisticsPath, h.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc(trimSlash(StatisticsPath), h.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc(HealthPath, h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc(OpenAPIPath, OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc(DocsPath, SwaggerUI).Methods(http.MethodGet)
}

// parsePaging applies the default page and rejects non-integer values.
// Negative values are passed through unchanged.
func parsePaging(limitStr, offsetStr string) (int, int, error) {
	limit := services.DefaultLimit
	offset := services.DefaultOffset

	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, &models.ValidationError{Field: "limit", Value: limitStr, Message: "limit must be an integer"}
		}
		limit = l
	}

	if offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, &models.ValidationError{Field: "offset", Value: offsetStr, Message: "offset must be an integer"}
		}
		offset = o
	}

	return limit, offset, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func trimSlash(path string) string {
	return path[:len(path)-1]
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{"reason": err.Error()})
	}
}

func (h *WeatherHandler) sendValidationError(w http.ResponseWriter, endpoint, method string, err error) {
	h.metrics.RecordAPIError("validation_error", endpoint)
	h.sendError(w, endpoint, method, err.Error(), http.StatusBadRequest)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, endpoint, method, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}
