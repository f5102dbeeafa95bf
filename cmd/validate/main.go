// Command validate checks a spot catalog against an observation fixture
// offline. It derives the station lists the engine would index, then verifies
// that the k-d tree agrees with a linear scan, that every link honours the
// radius and freshness rules, and that relinking is deterministic.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -spots internal/pipeline/testdata/spots.json \
//	  -obs internal/pipeline/testdata/latest_obs.json \
//	  -at 2026-03-14T19:00:00Z
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	"github.com/couchcryptid/surf-spot-engine/internal/geo"
	"github.com/couchcryptid/surf-spot-engine/internal/linker"
	"github.com/couchcryptid/surf-spot-engine/internal/spatial"
	"github.com/couchcryptid/surf-spot-engine/internal/spots"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	spotsPath string
	obsPath   string
	at        time.Time
	maxAge    time.Duration
	link      linker.Options
}

func main() {
	spotsPath := flag.String("spots", "", "spot catalog JSON")
	obsPath := flag.String("obs", "", "JSON array of NDBC latest_obs rows")
	at := flag.String("at", "", "reference time (RFC3339); defaults to the newest observation")
	maxAge := flag.Duration("max-age", 3*time.Hour, "reading freshness window")
	swellRadius := flag.Float64("swell-radius", linker.DefaultSwellRadiusKm, "swell search radius in km")
	windRadius := flag.Float64("wind-radius", linker.DefaultWindRadiusKm, "wind search radius in km")
	distinct := flag.Bool("distinct-wind", false, "prefer a wind station other than the swell buoy")
	flag.Parse()

	if *spotsPath == "" || *obsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := options{
		spotsPath: *spotsPath,
		obsPath:   *obsPath,
		maxAge:    *maxAge,
		link: linker.Options{
			SwellRadiusKm:      *swellRadius,
			WindRadiusKm:       *windRadius,
			PreferDistinctWind: *distinct,
		},
	}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -at: %v\n", err)
			os.Exit(1)
		}
		opts.at = t
	}

	if code := run(opts, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(opts options, out io.Writer) int {
	fmt.Fprintln(out, "=== Spot Link Validation ===")

	catalog, err := spots.LoadFile(opts.spotsPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(out, "FATAL: load spots: %v\n", err)
		return 1
	}

	rows, err := loadJSON[domain.RawObservation](opts.obsPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load observations: %v\n", err)
		return 1
	}

	ds := buildDataset(rows, opts.at, opts.maxAge)
	spotList := catalog.Spots()

	phases := []*phase{
		validateStations(ds.stations),
		validateIndexAgreement(spotList, ds.stations, opts.link),
		validateLinks(spotList, ds.stations, opts.link),
		validateDeterminism(spotList, ds.stations, opts.link),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Spots: %d, rows: %d (%d rejected), stations: %d swell / %d wind valid at %s\n",
		len(spotList), len(rows), ds.rejected,
		countValid(ds.stations, domain.KindSwell), countValid(ds.stations, domain.KindWind),
		ds.now.Format(time.RFC3339))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

type dataset struct {
	stations []domain.SensorStation
	now      time.Time
	rejected int
}

// buildDataset parses rows, keeps the newest reading per station and kind,
// and marks stations valid relative to at. A zero at uses the newest
// observation time, which also serves as the fallback for rows without one.
func buildDataset(rows []domain.RawObservation, at time.Time, maxAge time.Duration) dataset {
	ref := at
	if ref.IsZero() {
		ref = newestObservation(rows)
	}
	domain.SetClock(clockwork.NewFakeClockAt(ref))
	defer domain.SetClock(nil)

	ds := dataset{now: ref}
	type key struct {
		id   string
		kind domain.SensorKind
	}
	latest := make(map[key]time.Time)
	index := make(map[key]int)
	for _, row := range rows {
		obs, err := domain.ObservationFromRecord(row, time.Time{})
		if err != nil {
			ds.rejected++
			continue
		}
		for _, kind := range obs.Kinds() {
			k := key{id: obs.StationID, kind: kind}
			ts := readingTime(obs, kind)
			st := domain.SensorStation{
				ID:       obs.StationID,
				Kind:     kind,
				Location: obs.Location,
				Valid:    maxAge <= 0 || ref.Sub(ts) <= maxAge,
			}
			if i, seen := index[k]; seen {
				if ts.Before(latest[k]) {
					continue
				}
				ds.stations[i] = st
			} else {
				index[k] = len(ds.stations)
				ds.stations = append(ds.stations, st)
			}
			latest[k] = ts
		}
	}
	return ds
}

func readingTime(obs domain.Observation, kind domain.SensorKind) time.Time {
	if kind == domain.KindSwell {
		return obs.Swell.Timestamp
	}
	return obs.Wind.Timestamp
}

func newestObservation(rows []domain.RawObservation) time.Time {
	var newest time.Time
	for _, row := range rows {
		obs, err := domain.ObservationFromRecord(row, time.Unix(0, 0))
		if err != nil {
			continue
		}
		if obs.ObservedAt.After(newest) {
			newest = obs.ObservedAt
		}
	}
	if newest.IsZero() {
		return time.Now().UTC()
	}
	return newest
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func countValid(stations []domain.SensorStation, kind domain.SensorKind) int {
	n := 0
	for _, st := range stations {
		if st.Kind == kind && st.Valid {
			n++
		}
	}
	return n
}

func ofKind(stations []domain.SensorStation, kind domain.SensorKind) []domain.SensorStation {
	var out []domain.SensorStation
	for _, st := range stations {
		if st.Kind == kind {
			out = append(out, st)
		}
	}
	return out
}

// finders builds the k-d tree for each kind. A kind with no valid stations
// yields a nil finder.
func finders(stations []domain.SensorStation) (swell, wind linker.NearestFinder, err error) {
	build := func(kind domain.SensorKind) (linker.NearestFinder, error) {
		ix, err := spatial.Build(ofKind(stations, kind))
		if errors.Is(err, domain.ErrEmptyIndex) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return ix, nil
	}
	if swell, err = build(domain.KindSwell); err != nil {
		return nil, nil, err
	}
	if wind, err = build(domain.KindWind); err != nil {
		return nil, nil, err
	}
	return swell, wind, nil
}

// ── Phase 1: Stations ──

func validateStations(stations []domain.SensorStation) *phase {
	p := &phase{name: "Phase 1: Station list"}
	for _, st := range stations {
		if st.ID == "" {
			p.errorf("station with empty id at %v", st.Location)
		}
		if st.Kind != domain.KindSwell && st.Kind != domain.KindWind {
			p.errorf("station %s: unknown kind %q", st.ID, st.Kind)
		}
		if !st.Location.Valid() {
			p.errorf("station %s: invalid location %v", st.ID, st.Location)
		}
	}
	if countValid(stations, domain.KindSwell) == 0 {
		p.errorf("no valid swell stations")
	}
	if countValid(stations, domain.KindWind) == 0 {
		p.errorf("no valid wind stations")
	}
	return p
}

// ── Phase 2: Index agreement ──
// The k-d tree must return exactly what a linear scan returns.

func validateIndexAgreement(spotList []domain.Spot, stations []domain.SensorStation, opts linker.Options) *phase {
	p := &phase{name: "Phase 2: Index vs linear scan"}

	radii := map[domain.SensorKind]float64{
		domain.KindSwell: opts.SwellRadiusKm,
		domain.KindWind:  opts.WindRadiusKm,
	}
	for _, kind := range []domain.SensorKind{domain.KindSwell, domain.KindWind} {
		subset := ofKind(stations, kind)
		ix, err := spatial.Build(subset)
		if errors.Is(err, domain.ErrEmptyIndex) {
			continue
		}
		if err != nil {
			p.errorf("%s: build index: %v", kind, err)
			continue
		}
		ls, err := spatial.NewLinearScan(subset)
		if err != nil {
			p.errorf("%s: build linear scan: %v", kind, err)
			continue
		}

		for _, spot := range spotList {
			for _, radius := range []float64{radii[kind], math.Inf(1)} {
				got, gotOK := ix.NearestValid(spot.Location, radius)
				want, wantOK := ls.NearestValid(spot.Location, radius)
				if gotOK != wantOK {
					p.errorf("%s %q radius %g: index found=%v, scan found=%v", kind, spot.Name, radius, gotOK, wantOK)
					continue
				}
				if diff := cmp.Diff(want, got); diff != "" {
					p.errorf("%s %q radius %g: mismatch (-scan +index):\n%s", kind, spot.Name, radius, diff)
				}
			}
		}
	}
	return p
}

// ── Phase 3: Link invariants ──

func validateLinks(spotList []domain.Spot, stations []domain.SensorStation, opts linker.Options) *phase {
	p := &phase{name: "Phase 3: Link invariants"}

	swell, wind, err := finders(stations)
	if err != nil {
		p.errorf("build indices: %v", err)
		return p
	}
	table := linker.Relink(spotList, swell, wind, opts)
	checkTable(p, spotList, stations, table, opts)
	return p
}

func checkTable(p *phase, spotList []domain.Spot, stations []domain.SensorStation, table domain.LinkTable, opts linker.Options) {
	valid := make(map[domain.SensorKind]map[string]domain.SensorStation)
	for _, st := range stations {
		if !st.Valid {
			continue
		}
		if valid[st.Kind] == nil {
			valid[st.Kind] = make(map[string]domain.SensorStation)
		}
		valid[st.Kind][st.ID] = st
	}

	if len(table) != len(spotList) {
		p.errorf("table has %d records for %d spots", len(table), len(spotList))
	}
	for _, spot := range spotList {
		rec, ok := table[spot.Name]
		if !ok {
			p.errorf("%q: no link record", spot.Name)
			continue
		}
		if rec.SpotName != spot.Name {
			p.errorf("%q: record names %q", spot.Name, rec.SpotName)
		}
		checkLink(p, spot, domain.KindSwell, rec.SwellStationID, rec.SwellDistanceKm, opts.SwellRadiusKm, valid[domain.KindSwell])
		checkLink(p, spot, domain.KindWind, rec.WindStationID, rec.WindDistanceKm, opts.WindRadiusKm, valid[domain.KindWind])
	}
}

func checkLink(p *phase, spot domain.Spot, kind domain.SensorKind, id string, distKm, radiusKm float64, valid map[string]domain.SensorStation) {
	if id == "" {
		if distKm != 0 {
			p.errorf("%q: unlinked %s has distance %g", spot.Name, kind, distKm)
		}
		for _, st := range valid {
			if geo.PlanarDistanceKm(spot.Location, st.Location) < radiusKm {
				p.errorf("%q: no %s link but %s is within %g km", spot.Name, kind, st.ID, radiusKm)
			}
		}
		return
	}

	st, ok := valid[id]
	if !ok {
		p.errorf("%q: %s link %s is not a valid %s station", spot.Name, kind, id, kind)
		return
	}
	want := geo.PlanarDistanceKm(spot.Location, st.Location)
	if math.Abs(want-distKm) > 1e-9 {
		p.errorf("%q: %s distance %g, recomputed %g", spot.Name, kind, distKm, want)
	}
	if distKm >= radiusKm {
		p.errorf("%q: %s link %s at %g km is outside %g km", spot.Name, kind, id, distKm, radiusKm)
	}
}

// ── Phase 4: Determinism ──

func validateDeterminism(spotList []domain.Spot, stations []domain.SensorStation, opts linker.Options) *phase {
	p := &phase{name: "Phase 4: Relink determinism"}

	swell, wind, err := finders(stations)
	if err != nil {
		p.errorf("build indices: %v", err)
		return p
	}
	first := linker.Relink(spotList, swell, wind, opts)

	reversedSpots := slices.Clone(spotList)
	slices.Reverse(reversedSpots)
	reversedStations := slices.Clone(stations)
	slices.Reverse(reversedStations)
	swell2, wind2, err := finders(reversedStations)
	if err != nil {
		p.errorf("build reversed indices: %v", err)
		return p
	}
	second := linker.Relink(reversedSpots, swell2, wind2, opts)

	if diff := cmp.Diff(first, second); diff != "" {
		p.errorf("relink differs with reversed input order (-first +second):\n%s", diff)
	}
	return p
}
