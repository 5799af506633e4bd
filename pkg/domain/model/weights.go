package model

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// StandardWeights maps 5-year birth-cohort start years to a reference
// population count. It is an immutable value; use Clone before modifying.
type StandardWeights struct {
	Minimum int             `yaml:"minimum"`
	Width   int             `yaml:"width"`
	Counts  map[int]float64 `yaml:"weights"`
}

// czechReferencePopulation is the Czech 5-year reference population
var czechReferencePopulation = map[int]float64{
	1900: 13, 1905: 23, 1910: 32, 1915: 45,
	1920: 1068, 1925: 9202, 1930: 35006, 1935: 72997,
	1940: 150323, 1945: 246393, 1950: 297251, 1955: 299766,
	1960: 313501, 1965: 335185, 1970: 415319, 1975: 456701,
	1980: 375605, 1985: 357674, 1990: 338424, 1995: 256900,
	2000: 251049, 2005: 287094, 2010: 275837, 2015: 238952,
	2020: 84722,
}

// DefaultStandardWeights returns a fresh copy of the Czech reference population
func DefaultStandardWeights() StandardWeights {
	return StandardWeights{Minimum: 1900, Width: 5, Counts: cloneCounts(czechReferencePopulation)}
}

func cloneCounts(src map[int]float64) map[int]float64 {
	dst := make(map[int]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Clone returns a deep copy
func (w StandardWeights) Clone() StandardWeights {
	return StandardWeights{Minimum: w.Minimum, Width: w.Width, Counts: cloneCounts(w.Counts)}
}

// Validate validates the weight table
func (w StandardWeights) Validate() error {
	if w.Width <= 0 {
		return goerr.New("bucket width must be positive", goerr.V("width", w.Width))
	}
	if len(w.Counts) == 0 {
		return goerr.New("standard population has no buckets")
	}
	for start, count := range w.Counts {
		if start < w.Minimum || (start-w.Minimum)%w.Width != 0 {
			return goerr.New("bucket start is not on the bucket grid",
				goerr.V("bucket", start),
				goerr.V("minimum", w.Minimum),
				goerr.V("width", w.Width))
		}
		if count <= 0 {
			return goerr.New("bucket weight must be positive", goerr.V("bucket", start), goerr.V("weight", count))
		}
	}
	return nil
}

// Bucket maps a birth year to its bucket start. Unknown birth years and years
// outside the table are not eligible for standardization.
func (w StandardWeights) Bucket(birthYear int) (int, bool) {
	if birthYear == UnknownBirthYear || birthYear < w.Minimum || w.Width <= 0 {
		return 0, false
	}
	start := w.Minimum + ((birthYear-w.Minimum)/w.Width)*w.Width
	if _, ok := w.Counts[start]; !ok {
		return 0, false
	}
	return start, true
}

// Buckets returns the bucket starts in ascending order
func (w StandardWeights) Buckets() []int {
	out := make([]int, 0, len(w.Counts))
	for k := range w.Counts {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Total is the standard person-time: the sum of all bucket weights
func (w StandardWeights) Total() float64 {
	var total float64
	for _, v := range w.Counts {
		total += v
	}
	return total
}

// Normalize returns weights for the given buckets scaled to sum to one.
// Buckets without a weight are left out.
func (w StandardWeights) Normalize(buckets []int) map[int]float64 {
	var total float64
	for _, b := range buckets {
		total += w.Counts[b]
	}
	out := make(map[int]float64, len(buckets))
	if total <= 0 {
		return out
	}
	for _, b := range buckets {
		if c, ok := w.Counts[b]; ok && c > 0 {
			out[b] = c / total
		}
	}
	return out
}
