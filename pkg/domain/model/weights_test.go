package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/domain/model"
)

func TestDefaultStandardWeights(t *testing.T) {
	w := model.DefaultStandardWeights()
	gt.NoError(t, w.Validate())
	gt.Equal(t, len(w.Buckets()), 25)
	gt.Equal(t, w.Buckets()[0], 1900)
	gt.Equal(t, w.Counts[1975], 456701.0)

	// callers cannot alter the built-in table
	w.Counts[1975] = 1
	gt.Equal(t, model.DefaultStandardWeights().Counts[1975], 456701.0)
}

func TestStandardWeightsBucket(t *testing.T) {
	w := model.DefaultStandardWeights()

	testCases := []struct {
		year   int
		bucket int
		ok     bool
	}{
		{1900, 1900, true},
		{1904, 1900, true},
		{1943, 1940, true},
		{2020, 2020, true},
		{2024, 2020, true},
		{2025, 0, false},
		{1899, 0, false},
		{model.UnknownBirthYear, 0, false},
	}
	for _, tc := range testCases {
		b, ok := w.Bucket(tc.year)
		gt.Equal(t, ok, tc.ok)
		gt.Equal(t, b, tc.bucket)
	}
}

func TestStandardWeightsNormalize(t *testing.T) {
	w := model.StandardWeights{Minimum: 1940, Width: 5, Counts: map[int]float64{1940: 1, 1945: 3}}
	norm := w.Normalize([]int{1940, 1945, 1950})
	gt.Equal(t, len(norm), 2)
	gt.Equal(t, norm[1940], 0.25)
	gt.Equal(t, norm[1945], 0.75)

	gt.Equal(t, len(w.Normalize(nil)), 0)
}

func TestBirthYearLabel(t *testing.T) {
	gt.Equal(t, model.BirthYearLabel(model.UnknownBirthYear), "UNK")
	gt.Equal(t, model.BirthYearLabel(model.ASMRBirthYear), "ASMR")
	gt.Equal(t, model.BirthYearLabel(1950), "1950")
}

func TestQualityReport(t *testing.T) {
	q := model.NewQualityReport()
	for row := 1; row <= 8; row++ {
		q.Add(model.WarnDoseGap, row)
	}
	q.Add(model.WarnUnparsableDate, 3)

	gt.Equal(t, q.Count(model.WarnDoseGap), 8)
	gt.Equal(t, q.Examples(model.WarnDoseGap), []int{1, 2, 3, 4, 5})
	gt.Equal(t, q.Kinds(), []model.WarningKind{model.WarnDoseGap, model.WarnUnparsableDate})

	other := model.NewQualityReport()
	other.Records = 10
	other.Add(model.WarnUnparsableDate, 9)
	q.Merge(other)
	gt.Equal(t, q.Records, 10)
	gt.Equal(t, q.Counts()["unparsable_date"], 2)
	gt.Equal(t, q.Examples(model.WarnUnparsableDate), []int{3, 9})
}
