package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alzhcare-monitor/internal/ingest"
)

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestNormalizeCanonicalFields(t *testing.T) {
	payload := []byte(`{"bpm": 72, "spo2": 98, "temperature": 24.5, "fall": false, "sos": false}`)

	reading, events, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	require.NotNil(t, reading.BPM)
	assert.Equal(t, 72, *reading.BPM)
	require.NotNil(t, reading.SpO2)
	assert.Equal(t, 98, *reading.SpO2)
	require.NotNil(t, reading.TemperatureC)
	assert.Equal(t, 24.5, *reading.TemperatureC)
	assert.False(t, events.FallDetected)
	assert.False(t, events.SOSActive)
	assert.Equal(t, now, reading.Timestamp)
}

func TestNormalizePortugueseSynonyms(t *testing.T) {
	payload := []byte(`{"batimentos": 85, "oxigenio": 96, "temperaturaAmbiente": 22.0, "quedaDetectada": true}`)

	reading, events, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	require.NotNil(t, reading.BPM)
	assert.Equal(t, 85, *reading.BPM)
	require.NotNil(t, reading.SpO2)
	assert.Equal(t, 96, *reading.SpO2)
	require.NotNil(t, reading.TemperatureC)
	assert.Equal(t, 22.0, *reading.TemperatureC)
	assert.True(t, events.FallDetected)
}

func TestNormalizeStringNumerics(t *testing.T) {
	payload := []byte(`{"heartRate": "88", "saturacao": "97", "temp": "23.4", "sosActive": "true"}`)

	reading, events, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	require.NotNil(t, reading.BPM)
	assert.Equal(t, 88, *reading.BPM)
	require.NotNil(t, reading.SpO2)
	assert.Equal(t, 97, *reading.SpO2)
	require.NotNil(t, reading.TemperatureC)
	assert.Equal(t, 23.4, *reading.TemperatureC)
	assert.True(t, events.SOSActive)
}

func TestNormalizeUnparseableNumericIsAbsent(t *testing.T) {
	payload := []byte(`{"bpm": "n/a", "spo2": null, "temperatura": "--"}`)

	reading, _, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	assert.Nil(t, reading.BPM)
	assert.Nil(t, reading.SpO2)
	assert.Nil(t, reading.TemperatureC)
}

func TestNormalizeNestedGPS(t *testing.T) {
	payload := []byte(`{"bpm": 70, "gps": {"lat": -23.5505, "lng": -46.6333, "speed": 1.2, "satellites": 7}}`)

	reading, _, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	require.NotNil(t, reading.Location)
	assert.Equal(t, -23.5505, reading.Location.Latitude)
	assert.Equal(t, -46.6333, reading.Location.Longitude)
	require.NotNil(t, reading.Location.Speed)
	assert.Equal(t, 1.2, *reading.Location.Speed)
	require.NotNil(t, reading.Location.Satellites)
	assert.Equal(t, 7, *reading.Location.Satellites)
}

func TestNormalizeTopLevelCoordinates(t *testing.T) {
	payload := []byte(`{"latitude": -23.55, "longitude": -46.63}`)

	reading, _, err := ingest.Normalize(payload, now)
	require.NoError(t, err)

	require.NotNil(t, reading.Location)
	assert.Equal(t, -23.55, reading.Location.Latitude)
}

func TestNormalizeMissingCoordinateDropsLocation(t *testing.T) {
	payload := []byte(`{"gps": {"lat": -23.55}}`)

	reading, _, err := ingest.Normalize(payload, now)
	require.NoError(t, err)
	assert.Nil(t, reading.Location)
}

func TestNormalizeTimestampFormats(t *testing.T) {
	payload := []byte(`{"timestamp": "2026-08-30T09:30:00Z"}`)
	reading, _, err := ingest.Normalize(payload, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC), reading.Timestamp)

	payload = []byte(`{"ts": 1787200200000}`)
	reading, _, err = ingest.Normalize(payload, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1787200200000), reading.Timestamp.UnixMilli())
}

func TestNormalizeNumericBooleanFlags(t *testing.T) {
	payload := []byte(`{"fall": 1, "sos": 0}`)

	_, events, err := ingest.Normalize(payload, now)
	require.NoError(t, err)
	assert.True(t, events.FallDetected)
	assert.False(t, events.SOSActive)
}

func TestNormalizeRejectsNonJSON(t *testing.T) {
	_, _, err := ingest.Normalize([]byte("not json"), now)
	assert.Error(t, err)
}
