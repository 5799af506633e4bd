package registry

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/model"
)

// Field names used to override individual column names in configuration
const (
	FieldInfection = "infection"
	FieldSex       = "sex"
	FieldBirthYear = "birth_year"
	FieldDeath     = "death"
)

// DoseField returns the override key of dose column n (1-based)
func DoseField(n int) string {
	return "dose" + string(rune('0'+n))
}

// Schema maps registry fields to header names
type Schema struct {
	Name      string
	Infection string
	Sex       string
	BirthYear string
	Doses     [model.MaxDoses]string
	Death     string
}

// English is the schema of the translated registry export
var English = Schema{
	Name:      model.SchemaEnglish,
	Infection: "Infection",
	Sex:       "Sex",
	BirthYear: "YearOfBirth",
	Doses: [model.MaxDoses]string{
		"Date_FirstDose", "Date_SecondDose", "Date_ThirdDose", "Date_FourthDose",
		"Date_FifthDose", "Date_SixthDose", "Date_SeventhDose",
	},
	Death: "DateOfDeath",
}

// Czech is the schema of the raw registry export
var Czech = Schema{
	Name:      model.SchemaCzech,
	Infection: "Infekce",
	Sex:       "Pohlavi",
	BirthYear: "RokNarozeni",
	Doses: [model.MaxDoses]string{
		"Datum_Prvni_davka", "Datum_Druha_davka", "Datum_Treti_davka", "Datum_Ctvrta_davka",
		"Datum_Pata_davka", "Datum_Sesta_davka", "Datum_Sedma_davka",
	},
	Death: "DatumUmrtiLPZ",
}

// SchemaByName returns a built-in schema
func SchemaByName(name string) (Schema, error) {
	switch name {
	case model.SchemaEnglish:
		return English, nil
	case model.SchemaCzech:
		return Czech, nil
	default:
		return Schema{}, goerr.New("unknown registry schema", goerr.V("schema", name), goerr.T(model.TagInvalidConfig))
	}
}

// DetectSchema picks the built-in schema whose birth-year and death columns
// appear in the header
func DetectSchema(header []string) (Schema, error) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[normalizeHeader(h)] = true
	}
	for _, s := range []Schema{English, Czech} {
		if present[s.BirthYear] && present[s.Death] {
			return s, nil
		}
	}
	return Schema{}, goerr.New("cannot detect registry schema from header",
		goerr.V("header", header),
		goerr.T(model.TagInvalidInput))
}

// WithOverrides returns a copy of the schema with the given fields renamed
func (s Schema) WithOverrides(columns map[string]string) (Schema, error) {
	for field, name := range columns {
		switch field {
		case FieldInfection:
			s.Infection = name
		case FieldSex:
			s.Sex = name
		case FieldBirthYear:
			s.BirthYear = name
		case FieldDeath:
			s.Death = name
		default:
			matched := false
			for i := range s.Doses {
				if field == DoseField(i+1) {
					s.Doses[i] = name
					matched = true
				}
			}
			if !matched {
				return s, goerr.New("unknown column override", goerr.V("field", field), goerr.T(model.TagInvalidConfig))
			}
		}
	}
	return s, nil
}

// normalizeHeader trims whitespace and a UTF-8 byte order mark
func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
