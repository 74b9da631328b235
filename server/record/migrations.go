package record

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE session(
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			started_at INT NOT NULL,
			finished_at INT,
			frames INT NOT NULL DEFAULT 0,
			interval INT NOT NULL
		);
		CREATE INDEX idx_session_started_at ON session (started_at);
	`))

	return migs
}
