// Package spots loads the surf spot catalog.
//
// The catalog is a JSON array of records as produced by the offline linking
// script: name, lat, lng, country and beach_facing_deg. Linked station ids in
// the file are ignored; links are always recomputed from live station data.
package spots

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
)

// record is one catalog entry. Pointer fields distinguish absent from zero.
type record struct {
	Name           string   `json:"name"`
	Country        string   `json:"country"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	BeachFacingDeg *float64 `json:"beach_facing_deg"`
}

// Catalog is a loaded set of uniquely named spots.
type Catalog struct {
	spots []domain.Spot
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string, logger *slog.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spot catalog: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load decodes a catalog. Entries with no name, unusable coordinates or an
// invalid facing bearing (the script writes -1 when it found no coastline)
// are skipped with a warning. A repeated name is an error.
func Load(r io.Reader, logger *slog.Logger) (*Catalog, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode spot catalog: %w", err)
	}

	c := &Catalog{}
	seen := make(map[string]struct{}, len(records))
	skipped := 0
	for i, rec := range records {
		spot, reason := rec.toSpot()
		if reason != "" {
			logger.Warn("skipping spot", "index", i, "spot", rec.Name, "reason", reason)
			skipped++
			continue
		}
		if _, dup := seen[spot.Name]; dup {
			return nil, fmt.Errorf("decode spot catalog: duplicate spot name %q", spot.Name)
		}
		seen[spot.Name] = struct{}{}
		c.spots = append(c.spots, spot)
	}

	logger.Info("spot catalog loaded", "spots", len(c.spots), "skipped", skipped)
	return c, nil
}

func (rec record) toSpot() (domain.Spot, string) {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return domain.Spot{}, "missing name"
	}
	if rec.Lat == nil || rec.Lng == nil {
		return domain.Spot{}, "missing coordinates"
	}
	loc := geo.GeoPoint{Lat: *rec.Lat, Lon: *rec.Lng}
	if !loc.Valid() {
		return domain.Spot{}, "invalid coordinates"
	}
	if rec.BeachFacingDeg == nil || !geo.ValidBearing(*rec.BeachFacingDeg) {
		return domain.Spot{}, "invalid beach facing bearing"
	}
	return domain.Spot{
		Name:             name,
		Country:          rec.Country,
		Location:         loc,
		FacingBearingDeg: *rec.BeachFacingDeg,
	}, ""
}

// Spots returns the spots in catalog order.
func (c *Catalog) Spots() []domain.Spot {
	out := make([]domain.Spot, len(c.spots))
	copy(out, c.spots)
	return out
}

// Len returns the number of loaded spots.
func (c *Catalog) Len() int { return len(c.spots) }
