package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event/tests"

	postgrestest "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
		CREATE TABLE btcvault__core_event(
			id SERIAL NOT NULL PRIMARY KEY,

			event_id TEXT NOT NULL,
			event_type INTEGER NOT NULL,

			owner TEXT NOT NULL,
			block BIGINT NOT NULL,

			amount BIGINT,
			balance BIGINT,
			request_id BIGINT,
			recipient TEXT,
			expires_at_block BIGINT,
			old_timelock_blocks BIGINT,
			new_timelock_blocks BIGINT,

			created_at TIMESTAMP WITH TIME ZONE,

			CONSTRAINT btcvault__core_event__uniq__event_id UNIQUE (event_id)
		);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE btcvault__core_event;
	`
)

var (
	testStore event.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanUpFunc func()
	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	defer db.Close()

	if err := createTestTables(db); err != nil {
		logrus.StandardLogger().WithError(err).Error("Error creating test tables")
		cleanUpFunc()
		os.Exit(1)
	}

	testStore = New(db)
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if err := resetTestTables(db); err != nil {
			logrus.StandardLogger().WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestEventPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func createTestTables(db *sql.DB) error {
	_, err := db.Exec(tableCreate)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not create test tables")
		return err
	}
	return nil
}

func resetTestTables(db *sql.DB) error {
	_, err := db.Exec(tableDestroy)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not drop test tables")
		return err
	}

	return createTestTables(db)
}
