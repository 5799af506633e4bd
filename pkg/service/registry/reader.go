package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Birth years outside this range are treated as unknown
const (
	minBirthYear = 1800
	maxBirthYear = 2100
)

// Reader parses a per-individual registry CSV
type Reader struct {
	schema  string
	columns map[string]string
}

// New creates a Reader. An empty schema name detects the schema from the header.
func New(schema string, columns map[string]string) *Reader {
	return &Reader{schema: schema, columns: columns}
}

// ReadFile reads the registry at path
func (r *Reader) ReadFile(ctx context.Context, path string, report *model.QualityReport) ([]model.Individual, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open registry file", goerr.V("path", path), goerr.T(model.TagInvalidInput))
	}
	defer f.Close()

	people, err := r.Read(ctx, f, report)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read registry file", goerr.V("path", path))
	}
	return people, nil
}

type columnIndex struct {
	infection int
	sex       int
	birthYear int
	doses     [model.MaxDoses]int
	death     int
}

// Read parses registry rows. Unparsable dates become missing and are recorded
// in report; a missing required column is an error.
func (r *Reader) Read(ctx context.Context, src io.Reader, report *model.QualityReport) ([]model.Individual, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, goerr.New("registry file is empty", goerr.T(model.TagInvalidInput))
		}
		return nil, goerr.Wrap(err, "failed to read registry header", goerr.T(model.TagInvalidInput))
	}
	header = append([]string(nil), header...)

	schema, err := r.resolveSchema(header)
	if err != nil {
		return nil, err
	}
	idx, err := indexColumns(schema, header)
	if err != nil {
		return nil, err
	}

	ctxlog.From(ctx).Info("reading registry", "schema", schema.Name)

	var people []model.Individual
	row := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, goerr.Wrap(err, "malformed registry row", goerr.V("row", row), goerr.T(model.TagInvalidInput))
		}
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "registry read cancelled", goerr.V("row", row))
		}
		people = append(people, parseRecord(record, idx, row, report))
	}

	return people, nil
}

func (r *Reader) resolveSchema(header []string) (Schema, error) {
	var (
		schema Schema
		err    error
	)
	if r.schema == model.SchemaAuto {
		schema, err = DetectSchema(header)
	} else {
		schema, err = SchemaByName(r.schema)
	}
	if err != nil {
		return Schema{}, err
	}
	return schema.WithOverrides(r.columns)
}

func indexColumns(s Schema, header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[normalizeHeader(h)] = i
	}
	lookup := func(name string) int {
		if i, ok := pos[name]; ok && name != "" {
			return i
		}
		return -1
	}

	idx := columnIndex{
		infection: lookup(s.Infection),
		sex:       lookup(s.Sex),
		birthYear: lookup(s.BirthYear),
		death:     lookup(s.Death),
	}
	for i, name := range s.Doses {
		idx.doses[i] = lookup(name)
	}

	var missing []string
	if idx.sex < 0 {
		missing = append(missing, s.Sex)
	}
	if idx.birthYear < 0 {
		missing = append(missing, s.BirthYear)
	}
	if idx.death < 0 {
		missing = append(missing, s.Death)
	}
	if idx.doses[0] < 0 {
		missing = append(missing, s.Doses[0])
	}
	if len(missing) > 0 {
		return idx, goerr.New("required registry columns are missing",
			goerr.V("schema", s.Name),
			goerr.V("missing", missing),
			goerr.T(model.TagInvalidInput))
	}
	return idx, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseRecord(record []string, idx columnIndex, row int, report *model.QualityReport) model.Individual {
	p := model.NewIndividual(row)
	p.Sex = types.ParseSex(field(record, idx.sex))
	p.BirthYear = parseBirthYear(field(record, idx.birthYear))
	p.Infection = parseInfection(field(record, idx.infection))

	for i, col := range idx.doses {
		p.Doses[i] = parseDate(field(record, col), row, report)
	}
	p.Death = parseDate(field(record, idx.death), row, report)
	return p
}

// parseBirthYear takes the first four-digit run, so ranges such as
// "1950-1954" resolve to their first year
func parseBirthYear(v string) int16 {
	m := yearPattern.FindString(v)
	if m == "" {
		return model.UnknownBirthYear
	}
	y, err := strconv.Atoi(m)
	if err != nil || y < minBirthYear || y > maxBirthYear {
		return model.UnknownBirthYear
	}
	return int16(y)
}

func parseInfection(v string) int8 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return int8(n)
}

func parseDate(v string, row int, report *model.QualityReport) model.Day {
	if v == "" {
		return model.NoDay
	}
	d, err := model.ParseDay(v)
	if err != nil || d.IsZero() {
		report.Add(model.WarnUnparsableDate, row)
		return model.NoDay
	}
	return d
}
