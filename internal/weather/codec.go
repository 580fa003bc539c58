package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ParseError is returned by Decode when the payload is not a dataset.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("weather: malformed dataset payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Encode renders the dataset as a JSON array of rows. Dates are written as
// YYYY-MM-DD strings and missing measures as null.
func Encode(d Dataset) ([]byte, error) {
	if d == nil {
		d = Dataset{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return b, nil
}

// Decode parses a payload produced by Encode. It also accepts the
// column-oriented layout ({"column": {"<row>": value}}) used by older runs,
// in which case rows are ordered by their numeric index.
func Decode(b []byte) (Dataset, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, &ParseError{Err: errors.New("empty payload")}
	}

	var rows []rawRow
	switch b[0] {
	case '[':
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, &ParseError{Err: err}
		}
	case '{':
		var err error
		rows, err = columnsToRows(b)
		if err != nil {
			return nil, &ParseError{Err: err}
		}
	default:
		return nil, &ParseError{Err: fmt.Errorf("unexpected leading byte %q", b[0])}
	}

	out := make(Dataset, 0, len(rows))
	for i, r := range rows {
		obs, err := r.observation()
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("row %d: %w", i, err)}
		}
		out = append(out, obs)
	}
	return out, nil
}

type rawRow struct {
	City          string          `json:"city"`
	Time          json.RawMessage `json:"time"`
	AvgTemp       *float64        `json:"tavg"`
	MinTemp       *float64        `json:"tmin"`
	MaxTemp       *float64        `json:"tmax"`
	Precipitation *float64        `json:"prcp"`
	WindSpeed     *float64        `json:"wspd"`
	Pressure      *float64        `json:"pres"`
}

func (r rawRow) observation() (Observation, error) {
	if r.City == "" {
		return Observation{}, errors.New("missing city")
	}
	date, err := parseDate(r.Time)
	if err != nil {
		return Observation{}, err
	}
	return Observation{
		City:          r.City,
		Date:          date,
		AvgTemp:       r.AvgTemp,
		MinTemp:       r.MinTemp,
		MaxTemp:       r.MaxTemp,
		Precipitation: r.Precipitation,
		WindSpeed:     r.WindSpeed,
		Pressure:      r.Pressure,
	}, nil
}

// parseDate accepts a date string (optionally with a time part) or epoch
// milliseconds, which is how older payloads serialised timestamps.
func parseDate(raw json.RawMessage) (civil.Date, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return civil.Date{}, errors.New("missing time")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return civil.Date{}, fmt.Errorf("time: %s is neither a string nor epoch millis", raw)
		}
		return civil.DateOf(time.UnixMilli(ms).UTC()), nil
	}

	if len(s) >= 10 {
		if d, err := civil.ParseDate(s[:10]); err == nil && (len(s) == 10 || strings.ContainsAny(s[10:11], " T")) {
			return d, nil
		}
	}
	return civil.Date{}, fmt.Errorf("time: cannot parse %q", s)
}

func columnsToRows(b []byte) ([]rawRow, error) {
	var cols map[string]map[string]json.RawMessage
	if err := json.Unmarshal(b, &cols); err != nil {
		return nil, err
	}

	byIndex := make(map[int]map[string]json.RawMessage)
	for col, values := range cols {
		for key, v := range values {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("column %q: non-numeric row index %q", col, key)
			}
			row, ok := byIndex[idx]
			if !ok {
				row = make(map[string]json.RawMessage, len(cols))
				byIndex[idx] = row
			}
			row[col] = v
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	rows := make([]rawRow, 0, len(indexes))
	for _, idx := range indexes {
		rb, err := json.Marshal(byIndex[idx])
		if err != nil {
			return nil, err
		}
		var r rawRow
		if err := json.Unmarshal(rb, &r); err != nil {
			return nil, fmt.Errorf("row %d: %w", idx, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
