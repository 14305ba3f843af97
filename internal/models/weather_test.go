package models

import (
	"errors"
	"os"
	"testing"
)

// TestRawWeatherRecord_ToObservation tests the tenths conversion
func TestRawWeatherRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name      string
		record    RawWeatherRecord
		stationID string
		want      DailyObservation
	}{
		{
			name: "valid record with all values",
			record: RawWeatherRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: 250,
				MinTemperatureTenths: 150,
				PrecipitationTenths:  100,
			},
			stationID: "TEST001",
			want:      DailyObservation{Date: "20230115", MaxT: 25.0, MinT: 15.0, Precip: 10.0, StationID: "TEST001"},
		},
		{
			name: "negative temperatures",
			record: RawWeatherRecord{
				Date:                 "20200101",
				MaxTemperatureTenths: 100,
				MinTemperatureTenths: -50,
				PrecipitationTenths:  0,
			},
			stationID: "USC1",
			want:      DailyObservation{Date: "20200101", MaxT: 10.0, MinT: -5.0, Precip: 0.0, StationID: "USC1"},
		},
		{
			name: "partial sentinel is converted like any value",
			record: RawWeatherRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: -9999,
				MinTemperatureTenths: 150,
				PrecipitationTenths:  -9999,
			},
			stationID: "TEST001",
			want:      DailyObservation{Date: "20230115", MaxT: -999.9, MinT: 15.0, Precip: -999.9, StationID: "TEST001"},
		},
		{
			name: "precision test - decimal conversion",
			record: RawWeatherRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: 255,
				MinTemperatureTenths: 144,
				PrecipitationTenths:  123,
			},
			stationID: "TEST001",
			want:      DailyObservation{Date: "20230115", MaxT: 25.5, MinT: 14.4, Precip: 12.3, StationID: "TEST001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.record.ToObservation(tt.stationID)
			if got != tt.want {
				t.Errorf("ToObservation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRawWeatherRecord_IsMissing(t *testing.T) {
	tests := []struct {
		name   string
		record RawWeatherRecord
		want   bool
	}{
		{"all three missing", RawWeatherRecord{"20200102", -9999, -9999, -9999}, true},
		{"max and min missing", RawWeatherRecord{"20200102", -9999, -9999, 0}, false},
		{"only precipitation missing", RawWeatherRecord{"20200102", 10, 5, -9999}, false},
		{"nothing missing", RawWeatherRecord{"20200102", 10, 5, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsMissing(); got != tt.want {
				t.Errorf("IsMissing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDailyObservation_Year(t *testing.T) {
	tests := map[string]string{
		"20200101": "2020",
		"1985":     "1985",
		"19x":      "19x",
		"abcdefgh": "abcd",
		"":         "",
	}
	for date, want := range tests {
		if got := (DailyObservation{Date: date}).Year(); got != want {
			t.Errorf("Year() for %q = %q, want %q", date, got, want)
		}
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{File: "USC1.txt", Line: 3, Reason: "invalid max temperature", Err: errors.New("bad digit")}

	if got, want := err.Error(), "USC1.txt:3: invalid max temperature: bad digit"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.IsTransient() {
		t.Error("ParseError should not be transient")
	}

	openErr := &ParseError{File: "gone.txt", Reason: "open failed", Err: os.ErrNotExist}
	if !errors.Is(openErr, os.ErrNotExist) {
		t.Error("ParseError should unwrap to the underlying error")
	}
	if got, want := openErr.Error(), "gone.txt: open failed: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// TestValidationError tests error handling
func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "limit",
		Value:   "ten",
		Message: "limit must be an integer",
	}

	if err.Error() != "limit must be an integer" {
		t.Errorf("Error() = %v, want %v", err.Error(), "limit must be an integer")
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}
