package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces/mocks"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	"github.com/mortality-lab/kcor/pkg/repository"
	"github.com/mortality-lab/kcor/pkg/usecase"
	"github.com/xuri/excelize/v2"
)

// writeRegistry writes a synthetic registry of 1800 people in 36 blocks of
// 50, one block per (birth year, sex, vaccinated). The first 18 blocks got two
// doses before the 2021-24 enrollment. In every block one person dies in each
// week 2021-16 .. 2021-40 and three die in 2020. Row 6 is a repeat-infection
// record.
func writeRegistry(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(registryHeader)

	for i := 0; i < 1800; i++ {
		block, j := i/50, i%50
		infection := 1
		if i == 5 {
			infection = 2
		}
		year := 1940 + (block%9)*5
		sex := 1 + (block/9)%2

		var dose1, dose2 string
		if block < 18 {
			dose1, dose2 = "2021-10", "2021-14"
		}
		var death string
		switch {
		case j < 25:
			death = fmt.Sprintf("2021-%02d", 16+j)
		case j < 28:
			death = fmt.Sprintf("2020-%02d", j)
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%s,%s,,,,,,%s\n", i+1, infection, sex, year, dose1, dose2, death)
	}

	return writeFile(t, b.String())
}

const registryHeader = "ID,Infection,Sex,YearOfBirth,Date_FirstDose,Date_SecondDose,Date_ThirdDose,Date_FourthDose,Date_FifthDose,Date_SixthDose,Date_SeventhDose,DateOfDeath\n"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.csv")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func testConfig() *model.AnalysisConfig {
	cfg := model.DefaultAnalysisConfig()
	cfg.Enrollments = []string{"2021-24"}
	cfg.MaxDose = 2
	cfg.Workers = 2
	cfg.KCOR.Doses = []int{2}
	cfg.KCOR.BirthYears = []int{1950, 1950, 1900}
	cfg.KCOR.Anchor.Start = "2021-25"
	cfg.KCOR.Anchor.End = "2021-40"
	return cfg
}

func TestAnalysisRun(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	notifier := &mocks.NotifierMock{
		NotifyRunFunc: func(ctx context.Context, run *model.RunRecord) error {
			return nil
		},
	}
	uc := usecase.NewAnalysis(repo, usecase.WithNotifier(notifier))

	input := writeRegistry(t)
	output := filepath.Join(t.TempDir(), "kcor.xlsx")

	run, err := uc.Run(ctx, testConfig(), input, output)
	gt.NoError(t, err).Required()

	t.Run("run record", func(t *testing.T) {
		gt.Equal(t, run.Status, model.RunStatusSucceeded)
		gt.Equal(t, run.Records, 1800)
		gt.Equal(t, run.Dropped, 1)
		gt.Equal(t, run.Warnings[string(model.WarnDuplicateRecord)], 1)
		gt.S(t, run.ConfigYAML).Contains("max_dose: 2")
		gt.Equal(t, len(run.Enrollments), 1)

		e := run.Enrollments[0]
		gt.Equal(t, e.Enrollment, "2021-24")
		gt.Equal(t, e.Population, int64(1799))
		// ASMR plus the one distinct birth year present in the cohort
		gt.Equal(t, len(e.Series), 2)
		gt.Equal(t, e.Series[0].Name, "2021_24_BYASMR_D2v0")
		gt.Equal(t, e.Series[1].Name, "2021_24_BY1950_D2v0")
		gt.Equal(t, e.Series[0].AnchorStart, "2021-25")
		gt.False(t, e.Series[0].Fallback)
		gt.NotNil(t, e.Series[0].KCOR)
		// both arms lose one person per block each week
		gt.True(t, *e.Series[0].KCOR > 0.5 && *e.Series[0].KCOR < 2)
	})

	t.Run("run is stored", func(t *testing.T) {
		stored, err := uc.GetRun(ctx, run.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, stored.Status, model.RunStatusSucceeded)

		runs, err := uc.ListRuns(ctx, 10)
		gt.NoError(t, err)
		gt.Equal(t, len(runs), 1)
	})

	t.Run("notifier receives the finished run", func(t *testing.T) {
		calls := notifier.NotifyRunCalls()
		gt.Equal(t, len(calls), 1)
		gt.Equal(t, calls[0].Run.ID, run.ID)
		gt.Equal(t, calls[0].Run.Status, model.RunStatusSucceeded)
	})

	t.Run("workbook", func(t *testing.T) {
		f, err := excelize.OpenFile(output)
		gt.NoError(t, err).Required()
		defer f.Close()

		gt.Equal(t, f.GetSheetList(), []string{
			"2021_24",
			"2021_24_CMR",
			"2021_24_BYASMR_D2v0_KCOR",
			"2021_24_BY1950_D2v0_KCOR",
			"KCOR_summary",
		})

		rows, err := f.GetRows("2021_24")
		gt.NoError(t, err).Required()
		gt.Equal(t, rows[1][0], "2020-25")
	})
}

// TestAnalysisRunNullEffect runs a cohort in which vaccination has no effect.
// After enrollment both arms lose two people every week out of equal
// populations. Before vaccination started only the unvaccinated arm can
// record deaths, so the year before enrollment cannot serve as the baseline.
func TestAnalysisRunNullEffect(t *testing.T) {
	first, err := model.ParseWeek("2020-01")
	gt.NoError(t, err).Required()
	enroll, err := model.ParseWeek("2021-24")
	gt.NoError(t, err).Required()

	var b strings.Builder
	b.WriteString(registryHeader)
	id := 0
	person := func(dose1, death string) {
		id++
		fmt.Fprintf(&b, "%d,1,1,1950,%s,,,,,,,%s\n", id, dose1, death)
	}
	for i := 0; i < 1000; i++ {
		person("2021-05", "")
		person("", "")
	}
	// 2020-01 .. 2023-52
	for i := 0; i < 209; i++ {
		w := first.Add(i)
		for k := 0; k < 2; k++ {
			if w < enroll {
				person("", w.String())
			} else {
				person("2021-05", w.String())
			}
			person("", w.String())
		}
	}

	cfg := model.DefaultAnalysisConfig()
	cfg.Enrollments = []string{"2021-24"}
	cfg.MaxDose = 1
	cfg.Workers = 1
	cfg.KCOR.Doses = []int{1}
	cfg.KCOR.BirthYears = []int{1950}

	uc := usecase.NewAnalysis(repository.NewMemory())
	run, err := uc.Run(context.Background(), cfg, writeFile(t, b.String()), filepath.Join(t.TempDir(), "kcor.xlsx"))
	gt.NoError(t, err).Required()

	series := run.Enrollments[0].Series
	gt.Equal(t, len(series), 2)
	for _, s := range series {
		t.Run(s.Name, func(t *testing.T) {
			gt.True(t, s.Fallback)
			gt.Equal(t, s.AnchorStart, "2022-24")
			gt.NotNil(t, s.KCOR)
			gt.True(t, math.Abs(*s.KCOR-1) < 1e-6)
		})
	}
}

func TestAnalysisRunBySexAllBirthYears(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.StratifyBySex = true
	cfg.KCOR.BirthYears = nil
	cfg.KCOR.AllBirthYears = true
	cfg.KCOR.IncludeASMR = false

	uc := usecase.NewAnalysis(repository.NewMemory())
	run, err := uc.Run(ctx, cfg, writeRegistry(t), filepath.Join(t.TempDir(), "kcor.xlsx"))
	gt.NoError(t, err).Required()

	// 9 birth years x 2 sexes
	series := run.Enrollments[0].Series
	gt.Equal(t, len(series), 18)
	gt.Equal(t, series[0].Name, "2021_24_BY1940_D2v0_M")
	gt.Equal(t, series[0].Sex, "M")
}

func TestAnalysisRunFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing anchor fails the run", func(t *testing.T) {
		repo := repository.NewMemory()
		notifier := &mocks.NotifierMock{
			NotifyRunFunc: func(ctx context.Context, run *model.RunRecord) error {
				return errors.New("slack is down")
			},
		}
		uc := usecase.NewAnalysis(repo, usecase.WithNotifier(notifier))

		cfg := testConfig()
		cfg.KCOR.Anchor.Start = "2010-01"
		cfg.KCOR.Anchor.End = "2010-10"
		cfg.KCOR.Anchor.FallbackOffsetWeeks = 500

		run, err := uc.Run(ctx, cfg, writeRegistry(t), filepath.Join(t.TempDir(), "kcor.xlsx"))
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagMissingAnchor))
		gt.NotNil(t, run)
		gt.Equal(t, run.Status, model.RunStatusFailed)
		gt.S(t, run.Error).Contains("no anchor data")

		stored, err := repo.GetRun(ctx, run.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, stored.Status, model.RunStatusFailed)
		gt.Equal(t, stored.Records, 1800)

		// Notification failures are logged, not returned
		gt.Equal(t, len(notifier.NotifyRunCalls()), 1)
	})

	t.Run("missing input file", func(t *testing.T) {
		repo := repository.NewMemory()
		uc := usecase.NewAnalysis(repo)
		run, err := uc.Run(ctx, testConfig(), filepath.Join(t.TempDir(), "none.csv"), filepath.Join(t.TempDir(), "kcor.xlsx"))
		gt.Error(t, err)
		gt.Equal(t, run.Status, model.RunStatusFailed)
		gt.Equal(t, repo.Count(), 1)
	})

	t.Run("invalid config is not recorded", func(t *testing.T) {
		repo := repository.NewMemory()
		uc := usecase.NewAnalysis(repo)
		cfg := testConfig()
		cfg.Alpha = 2

		run, err := uc.Run(ctx, cfg, "in.csv", "out.xlsx")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagInvalidConfig))
		gt.Nil(t, run)
		gt.Equal(t, repo.Count(), 0)
	})
}

func TestAnalysisValidate(t *testing.T) {
	uc := usecase.NewAnalysis(repository.NewMemory())
	report, err := uc.Validate(context.Background(), testConfig(), writeRegistry(t))
	gt.NoError(t, err).Required()
	gt.Equal(t, report.Records, 1800)
	gt.Equal(t, report.Dropped, 1)
	gt.Equal(t, report.Examples(model.WarnDuplicateRecord), []int{6})
}

func TestAnalysisGetRun(t *testing.T) {
	uc := usecase.NewAnalysis(repository.NewMemory())

	_, err := uc.GetRun(context.Background(), types.NewRunID())
	gt.True(t, errors.Is(err, model.ErrRunNotFound))

	_, err = uc.GetRun(context.Background(), types.RunID("../etc"))
	gt.True(t, errors.Is(err, model.ErrRunNotFound))
}
