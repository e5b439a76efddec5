package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/nearexpiry/backend-nearexpiry/internal/config"
	"github.com/nearexpiry/backend-nearexpiry/internal/obs"
)

func main() {
	var (
		dir   = flag.String("dir", "migrations", "migrations directory")
		down  = flag.Bool("down", false, "roll back one migration instead of migrating up")
		steps = flag.Int("steps", 0, "apply exactly this many migrations (signed)")
	)
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	m, err := migrate.New("file://"+*dir, migrateURL(cfg.DatabaseURL))
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}
	defer m.Close()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Steps(-1)
	default:
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	version, dirty, verr := m.Version()
	if verr != nil && verr != migrate.ErrNilVersion {
		logger.Fatal().Err(verr).Msg("read migration version")
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	fmt.Fprintln(os.Stdout, "ok")
}

// migrateURL rewrites the connection scheme for the pgx v5 migrate driver.
func migrateURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if strings.HasPrefix(databaseURL, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://")
	}
	return databaseURL
}
