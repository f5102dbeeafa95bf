// Command genmock converts an NDBC latest_obs.txt snapshot into the JSON
// observation fixture used by the pipeline tests, and can replay the rows
// onto the observation topic for local runs.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -in latest_obs.txt \
//	  -out internal/pipeline/testdata/latest_obs.json \
//	  [-brokers localhost:9092 -topic station-observations]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/surf-spot-engine/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "NDBC latest_obs.txt file")
	out := flag.String("out", "", "output path for the JSON fixture")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers; publish rows when set")
	topic := flag.String("topic", "station-observations", "observation topic")
	flag.Parse()

	if *in == "" || *out == "" {
		flag.Usage()
		return errors.New("missing required flags: -in, -out")
	}

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := parseLatestObs(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *in, err)
	}
	log.Printf("parsed %d station rows", len(rows))

	if err := writeJSON(*out, rows); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(rows)

	if *brokers == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := publish(ctx, strings.Split(*brokers, ","), *topic, rows); err != nil {
		return fmt.Errorf("publishing: %w", err)
	}
	log.Printf("published %d rows to %s", len(rows), *topic)
	return nil
}

// columns maps latest_obs header names onto RawObservation fields.
var columns = map[string]func(*domain.RawObservation, string){
	"STN":  func(r *domain.RawObservation, v string) { r.Station = v },
	"LAT":  func(r *domain.RawObservation, v string) { r.Lat = v },
	"LON":  func(r *domain.RawObservation, v string) { r.Lon = v },
	"YYYY": func(r *domain.RawObservation, v string) { r.Year = v },
	"MM":   func(r *domain.RawObservation, v string) { r.Month = v },
	"DD":   func(r *domain.RawObservation, v string) { r.Day = v },
	"hh":   func(r *domain.RawObservation, v string) { r.Hour = v },
	"mm":   func(r *domain.RawObservation, v string) { r.Minute = v },
	"WDIR": func(r *domain.RawObservation, v string) { r.WDir = v },
	"WSPD": func(r *domain.RawObservation, v string) { r.WSpd = v },
	"GST":  func(r *domain.RawObservation, v string) { r.Gust = v },
	"WVHT": func(r *domain.RawObservation, v string) { r.WVHT = v },
	"DPD":  func(r *domain.RawObservation, v string) { r.DPD = v },
	"ATMP": func(r *domain.RawObservation, v string) { r.ATMP = v },
	"WTMP": func(r *domain.RawObservation, v string) { r.WTMP = v },
}

// parseLatestObs reads the whitespace-separated latest_obs format. The first
// '#' line names the columns; the units line and short rows are skipped.
func parseLatestObs(r io.Reader) ([]domain.RawObservation, error) {
	var (
		header []string
		rows   []domain.RawObservation
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if header == nil {
				header = strings.Fields(strings.TrimPrefix(line, "#"))
			}
			continue
		}
		if header == nil {
			return nil, errors.New("data row before header")
		}
		fields := strings.Fields(line)
		if len(fields) < len(header) {
			continue
		}
		var rec domain.RawObservation
		for i, name := range header {
			if set, ok := columns[name]; ok {
				set(&rec, fields[i])
			}
		}
		rows = append(rows, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, errors.New("no header line")
	}
	return rows, nil
}

func publish(ctx context.Context, brokers []string, topic string, rows []domain.RawObservation) error {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", row.Station, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(row.Station),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "source", Value: []byte("ndbc")},
			},
		})
	}
	return w.WriteMessages(ctx, msgs...)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// rowStats holds aggregated counts for printStats reporting.
type rowStats struct {
	total, swell, wind, both, rejected int
}

func collectStats(rows []domain.RawObservation) rowStats {
	var s rowStats
	for _, row := range rows {
		s.total++
		obs, err := domain.ObservationFromRecord(row, time.Time{})
		if err != nil {
			s.rejected++
			continue
		}
		hasSwell, hasWind := obs.Swell != nil, obs.Wind != nil
		switch {
		case hasSwell && hasWind:
			s.both++
			s.swell++
			s.wind++
		case hasSwell:
			s.swell++
		case hasWind:
			s.wind++
		}
	}
	return s
}

func printStats(rows []domain.RawObservation) {
	s := collectStats(rows)
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d\n", s.total)
	fmt.Printf("Swell stations: %d\n", s.swell)
	fmt.Printf("Wind stations: %d\n", s.wind)
	fmt.Printf("Both kinds: %d\n", s.both)
	fmt.Printf("Rejected (no id or position): %d\n", s.rejected)
}
