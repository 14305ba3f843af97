package models

import (
	"fmt"
)

// MissingValue marks a measurement that was not recorded
const MissingValue = -9999

// Persisted dataset names
const (
	RawDataset   = "WX_Data_Raw"
	StatsDataset = "WX_Data_Stats"
)

// DailyObservation is one station-day of cleaned weather data.
// Date is kept as the 8-digit YYYYMMDD string read from the source file.
type DailyObservation struct {
	Date      string  `json:"Date" db:"Date"`
	MaxT      float64 `json:"MaxT" db:"MaxT"`
	MinT      float64 `json:"MinT" db:"MinT"`
	Precip    float64 `json:"Precip" db:"Precip"`
	StationID string  `json:"StationID" db:"StationID"`
}

// Year returns the first four characters of Date. No date parsing is done,
// so a malformed Date yields a malformed Year.
func (o DailyObservation) Year() string {
	if len(o.Date) < 4 {
		return o.Date
	}
	return o.Date[:4]
}

// YearlyStat holds the per station-year summary
type YearlyStat struct {
	StationID   string  `json:"StationID" db:"StationID"`
	Year        string  `json:"Year" db:"Year"`
	AvgMaxT     float64 `json:"AvgMaxT" db:"AvgMaxT"`
	AvgMinT     float64 `json:"AvgMinT" db:"AvgMinT"`
	TotalPrecip float64 `json:"TotalPrecip" db:"TotalPrecip"` // cm
}

// RawWeatherRecord represents a single line from input data files
type RawWeatherRecord struct {
	Date                 string
	MaxTemperatureTenths int // 0.1°C
	MinTemperatureTenths int // 0.1°C
	PrecipitationTenths  int // 0.1mm
}

// IsMissing reports whether the line carries no measurement at all.
// Only all three values equal to the sentinel count; partial sentinels are kept.
func (r *RawWeatherRecord) IsMissing() bool {
	return r.MaxTemperatureTenths == MissingValue &&
		r.MinTemperatureTenths == MissingValue &&
		r.PrecipitationTenths == MissingValue
}

// ToObservation converts tenths of a unit to °C, °C and mm
func (r *RawWeatherRecord) ToObservation(stationID string) DailyObservation {
	return DailyObservation{
		Date:      r.Date,
		MaxT:      float64(r.MaxTemperatureTenths) / 10.0,
		MinT:      float64(r.MinTemperatureTenths) / 10.0,
		Precip:    float64(r.PrecipitationTenths) / 10.0,
		StationID: stationID,
	}
}

// ParseError is the tagged failure of parsing one station file.
// Line is 0 when the failure is not tied to a line (e.g. the file cannot be opened).
type ParseError struct {
	File   string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransient returns false as a bad file stays bad for the run
func (e *ParseError) IsTransient() bool {
	return false
}

// ValidationError represents a client input validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
