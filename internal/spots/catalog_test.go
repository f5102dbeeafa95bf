package spots

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const catalogJSON = `[
  {"name": "Ft Pierce Inlet", "lat": 27.47, "lng": -80.29, "country": "USA", "beach_facing_deg": 90.0, "primary_buoy_id": "41114", "wind_station_id": "FPKF1"},
  {"name": "Malibu", "lat": 34.03, "lng": -118.68, "country": "USA", "beach_facing_deg": 180.0},
  {"name": "Inland Lake", "lat": 40.0, "lng": -100.0, "country": "USA", "beach_facing_deg": -1},
  {"name": "Nowhere", "lat": 95.0, "lng": 0.0, "beach_facing_deg": 45},
  {"name": "", "lat": 10.0, "lng": 10.0, "beach_facing_deg": 45},
  {"name": "No Bearing", "lat": 10.0, "lng": 10.0},
  {"name": "Equator Point", "lat": 0.0, "lng": 0.0, "beach_facing_deg": 0}
]`

func TestLoad_SkipsInvalidEntries(t *testing.T) {
	c, err := Load(strings.NewReader(catalogJSON), discardLogger())
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	spots := c.Spots()
	assert.Equal(t, "Ft Pierce Inlet", spots[0].Name)
	assert.Equal(t, "Malibu", spots[1].Name)
	assert.Equal(t, "Equator Point", spots[2].Name)
}

func TestLoad_FieldMapping(t *testing.T) {
	c, err := Load(strings.NewReader(catalogJSON), discardLogger())
	require.NoError(t, err)

	spots := c.Spots()
	require.Len(t, spots, 3)
	s := spots[1]
	require.Equal(t, "Malibu", s.Name)
	assert.InDelta(t, 34.03, s.Location.Lat, 1e-9)
	assert.InDelta(t, -118.68, s.Location.Lon, 1e-9)
	assert.InDelta(t, 180.0, s.FacingBearingDeg, 1e-9)
	assert.Equal(t, "USA", s.Country)
}

func TestLoad_ZeroValuesAreKept(t *testing.T) {
	c, err := Load(strings.NewReader(catalogJSON), discardLogger())
	require.NoError(t, err)

	spots := c.Spots()
	require.Len(t, spots, 3)
	s := spots[2]
	require.Equal(t, "Equator Point", s.Name)
	assert.Zero(t, s.FacingBearingDeg)
}

func TestLoad_DuplicateName(t *testing.T) {
	in := `[{"name": "Malibu", "lat": 34, "lng": -118, "beach_facing_deg": 180},
	        {"name": "Malibu", "lat": 35, "lng": -119, "beach_facing_deg": 170}]`
	_, err := Load(strings.NewReader(in), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate spot name")
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(strings.NewReader(`{"name": "not an array"}`), discardLogger())
	require.Error(t, err)
}

func TestLoad_Empty(t *testing.T) {
	c, err := Load(strings.NewReader(`[]`), discardLogger())
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Spots())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spots.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))

	c, err := LoadFile(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), discardLogger())
	require.Error(t, err)
}
