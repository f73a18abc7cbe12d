package owid

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// Column names of the OWID vaccination datasets
const (
	ColLocation          = "location"
	ColDate              = "date"
	ColTotalVaccinations = "total_vaccinations"
	ColIsoCode           = "iso_code"
	ColVaccine           = "vaccine"

	ColPeopleVaccinated      = "people_vaccinated"
	ColPeopleFullyVaccinated = "people_fully_vaccinated"
	ColTotalBoosters         = "total_boosters"
)

// VaccinationColumns must all be present in a vaccinations payload header
var VaccinationColumns = []string{ColLocation, ColDate, ColTotalVaccinations, ColIsoCode}

// ManufacturerColumns must all be present in a by-manufacturer payload header
var ManufacturerColumns = []string{ColLocation, ColDate, ColVaccine, ColTotalVaccinations}

// Row is one vaccinations row with the optional people counters.
// Only the embedded DailyRecord takes part in KPI computation.
type Row struct {
	contracts.DailyRecord
	PeopleVaccinated      *int64
	PeopleFullyVaccinated *int64
	TotalBoosters         *int64
}

// Payload is a parsed vaccinations file
type Payload struct {
	Rows    []Row
	Dropped int // rows excluded at row level (missing keys, aggregates, bad dates)
}

// Records returns the daily records of the payload
func (p *Payload) Records() []contracts.DailyRecord {
	records := make([]contracts.DailyRecord, len(p.Rows))
	for i, row := range p.Rows {
		records[i] = row.DailyRecord
	}
	return records
}

// ManufacturerPayload is a parsed by-manufacturer file
type ManufacturerPayload struct {
	Rows    []contracts.ManufacturerRow
	Dropped int
}

// Parse reads a delimited vaccinations payload.
// A missing required column fails the whole payload; a bad row is only dropped.
// ⭐ SSOT: external payload → DailyRecord 변환은 이 함수에서만
func Parse(r io.Reader) (*Payload, error) {
	reader, index, err := openTable(r, VaccinationColumns)
	if err != nil {
		return nil, err
	}

	payload := &Payload{}
	err = eachRow(reader, func(row []string) {
		location := field(row, index[ColLocation])
		isoCode := field(row, index[ColIsoCode])
		rawDate := field(row, index[ColDate])

		if location == "" || isoCode == "" || rawDate == "" || contracts.IsAggregate(isoCode) {
			payload.Dropped++
			return
		}

		date, err := time.Parse(contracts.DateLayout, rawDate)
		if err != nil {
			payload.Dropped++
			return
		}

		payload.Rows = append(payload.Rows, Row{
			DailyRecord: contracts.DailyRecord{
				Country:         location,
				IsoCode:         isoCode,
				Date:            date,
				CumulativeTotal: parseTotal(field(row, index[ColTotalVaccinations])),
			},
			PeopleVaccinated:      optionalTotal(row, index, ColPeopleVaccinated),
			PeopleFullyVaccinated: optionalTotal(row, index, ColPeopleFullyVaccinated),
			TotalBoosters:         optionalTotal(row, index, ColTotalBoosters),
		})
	})
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// ParseManufacturers reads a delimited by-manufacturer payload
func ParseManufacturers(r io.Reader) (*ManufacturerPayload, error) {
	reader, index, err := openTable(r, ManufacturerColumns)
	if err != nil {
		return nil, err
	}

	payload := &ManufacturerPayload{}
	err = eachRow(reader, func(row []string) {
		location := field(row, index[ColLocation])
		vaccine := field(row, index[ColVaccine])
		rawDate := field(row, index[ColDate])

		if location == "" || vaccine == "" || rawDate == "" {
			payload.Dropped++
			return
		}

		date, err := time.Parse(contracts.DateLayout, rawDate)
		if err != nil {
			payload.Dropped++
			return
		}

		payload.Rows = append(payload.Rows, contracts.ManufacturerRow{
			Country: location,
			Vaccine: vaccine,
			Date:    date,
			Total:   parseTotal(field(row, index[ColTotalVaccinations])),
		})
	})
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// openTable sniffs the delimiter, reads the header and checks required columns
func openTable(r io.Reader, required []string) (*csv.Reader, map[string]int, error) {
	buffered := bufio.NewReader(r)

	headerLine, err := buffered.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return nil, nil, &contracts.MalformedPayloadError{Invalid: []string{"empty payload"}}
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), buffered))
	reader.Comma = sniffDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, &contracts.MalformedPayloadError{Invalid: []string{"header: " + err.Error()}}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &contracts.MalformedPayloadError{Missing: missing}
	}

	return reader, index, nil
}

// eachRow feeds every data row to fn. Structural CSV errors make the payload malformed;
// other read errors (a connection dropped mid-body) are returned as-is.
func eachRow(reader *csv.Reader, fn func(row []string)) error {
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return &contracts.MalformedPayloadError{Invalid: []string{parseErr.Error()}}
		}
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		fn(row)
	}
}

func sniffDelimiter(headerLine string) rune {
	best, bestCount := ',', strings.Count(headerLine, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(headerLine, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// optionalTotal reads a counter from a column the header may not have
func optionalTotal(row []string, index map[string]int, col string) *int64 {
	i, ok := index[col]
	if !ok {
		return nil
	}
	return parseTotal(field(row, i))
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseTotal reads an optional non-negative counter. Empty or unreadable values are
// absent; integral floats ("1234.0") are accepted.
func parseTotal(s string) *int64 {
	if s == "" {
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return nil
		}
		return &v
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
		return nil
	}
	v := int64(math.Round(f))
	return &v
}
