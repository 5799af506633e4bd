package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	"github.com/mortality-lab/kcor/pkg/repository"
	"github.com/urfave/cli/v3"
)

// Repository selects where run records are stored: Firestore when a project
// is set, SQLite when a path is set, memory otherwise
type Repository struct {
	SQLitePath         string
	FirestoreProjectID string
	FirestoreDatabase  string
}

// Flags returns CLI flags for Repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file for run records",
			Category:    "Repository",
			Sources:     cli.EnvVars("KCOR_SQLITE_PATH"),
			Destination: &r.SQLitePath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "GCP project ID for Firestore",
			Category:    "Repository",
			Sources:     cli.EnvVars("KCOR_FIRESTORE_PROJECT"),
			Destination: &r.FirestoreProjectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Category:    "Repository",
			Value:       "(default)",
			Sources:     cli.EnvVars("KCOR_FIRESTORE_DATABASE"),
			Destination: &r.FirestoreDatabase,
		},
	}
}

// Configure creates and returns the run repository
func (r *Repository) Configure(ctx context.Context) (interfaces.RunRepository, error) {
	logger := ctxlog.From(ctx)

	switch {
	case r.FirestoreProjectID != "":
		repo, err := repository.NewFirestore(ctx, r.FirestoreProjectID, r.FirestoreDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to init firestore",
				goerr.V("project", r.FirestoreProjectID),
				goerr.V("database", r.FirestoreDatabase),
			)
		}
		return repo, nil

	case r.SQLitePath != "":
		repo, err := repository.NewSQLite(ctx, r.SQLitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to init sqlite", goerr.V("path", r.SQLitePath))
		}
		return repo, nil

	default:
		logger.Warn("Using memory database for run records. The data will be removed when the process exits")
		return repository.NewMemory(), nil
	}
}

// LogValue returns structured log value
func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("sqlite_path", r.SQLitePath),
		slog.String("firestore_project", r.FirestoreProjectID),
		slog.String("firestore_database", r.FirestoreDatabase),
	)
}
