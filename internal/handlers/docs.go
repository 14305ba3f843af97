package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description, typ string, def interface{}) map[string]interface{} {
	schema := map[string]interface{}{"type": typ}
	if def != nil {
		schema["default"] = def
	}
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func arrayResponse(description string, properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":       "object",
						"properties": properties,
					},
				},
			},
		},
	}
}

var errorSchema = map[string]interface{}{
	"description": "Error response",
	"content": map[string]interface{}{
		"application/json": map[string]interface{}{
			"schema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"error":   map[string]string{"type": "string"},
					"message": map[string]string{"type": "string"},
					"code":    map[string]string{"type": "integer"},
				},
			},
		},
	},
}

var pagingParams = []map[string]interface{}{
	queryParam("limit", "Maximum number of rows (default: 10)", "integer", 10),
	queryParam("offset", "Number of rows to skip (default: 0)", "integer", 0),
}

// OpenAPISpec returns the OpenAPI 3.0 specification of the weather query API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Weather Data API",
			"description": "Read access to daily station observations and their yearly statistics",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			ObservationsPath: map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get daily observations",
					"description": "Daily observations filtered by station and date. Rows are returned in storage order.",
					"parameters": append([]map[string]interface{}{
						queryParam("StationID", "Filter by station id", "string", nil),
						queryParam("Date", "Filter by date (YYYYMMDD)", "string", nil),
					}, pagingParams...),
					"responses": map[string]interface{}{
						"200": arrayResponse("Matching observations", map[string]interface{}{
							"Date":      map[string]string{"type": "string"},
							"MaxT":      map[string]string{"type": "number"},
							"MinT":      map[string]string{"type": "number"},
							"Precip":    map[string]string{"type": "number"},
							"StationID": map[string]string{"type": "string"},
						}),
						"400": errorSchema,
						"500": errorSchema,
					},
				},
			},
			StatisticsPath: map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get yearly statistics",
					"description": "Mean max/min temperature (°C) and total precipitation (cm) per station and year",
					"parameters": append([]map[string]interface{}{
						queryParam("StationID", "Filter by station id", "string", nil),
						queryParam("Year", "Filter by year (YYYY)", "string", nil),
					}, pagingParams...),
					"responses": map[string]interface{}{
						"200": arrayResponse("Matching statistics", map[string]interface{}{
							"StationID":   map[string]string{"type": "string"},
							"Year":        map[string]string{"type": "string"},
							"AvgMaxT":     map[string]string{"type": "number"},
							"AvgMinT":     map[string]string{"type": "number"},
							"TotalPrecip": map[string]string{"type": "number"},
						}),
						"400": errorSchema,
						"500": errorSchema,
					},
				},
			},
			HealthPath: map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Pings the raw and stats stores",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Both stores reachable"},
						"503": map[string]interface{}{"description": "A store is unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(spec)
}
