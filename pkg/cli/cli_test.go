package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
)

const registryCSV = `ID,Infection,Sex,YearOfBirth,Date_FirstDose,Date_SecondDose,Date_ThirdDose,Date_FourthDose,Date_FifthDose,Date_SixthDose,Date_SeventhDose,DateOfDeath
1,1,1,1950-1954,2021-10,2021-14,,,,,,2021-30
2,,2,1962,2021-12,,,,,,,
3,1,2,1970,2021-99,,,,,,,2022-01
`

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.csv")
	gt.NoError(t, os.WriteFile(path, []byte(registryCSV), 0600)).Required()

	var out bytes.Buffer
	err := run(context.Background(), []string{"kcor", "--log-level", "error", "validate", path}, &out)
	gt.NoError(t, err).Required()
	gt.S(t, out.String()).Contains("records: 3")
	gt.S(t, out.String()).Contains("unparsable_date")
}

func TestRunsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	var out bytes.Buffer
	err := run(context.Background(), []string{"kcor", "--log-level", "error", "runs", "--sqlite-path", dbPath}, &out)
	gt.NoError(t, err).Required()
	gt.S(t, out.String()).Contains("Status")
}

func TestCommandArguments(t *testing.T) {
	ctx := context.Background()

	t.Run("run needs input and output", func(t *testing.T) {
		var out bytes.Buffer
		gt.Error(t, run(ctx, []string{"kcor", "--log-level", "error", "run", "only.csv"}, &out))
	})

	t.Run("validate needs input", func(t *testing.T) {
		var out bytes.Buffer
		gt.Error(t, run(ctx, []string{"kcor", "--log-level", "error", "validate"}, &out))
	})

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		gt.Error(t, run(ctx, []string{"kcor", "--log-level", "loud", "runs"}, &out))
	})
}
