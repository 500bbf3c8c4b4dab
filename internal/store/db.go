// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the gorm connection backing the provenance store. A single
// sqlite file (or ":memory:" in tests) is the only supported driver.
type DB struct {
	Conn *gorm.DB
}

// Open connects to the sqlite database at path (use ":memory:" for an
// ephemeral store) and runs AutoMigrate plus the raw-SQL pieces gorm cannot
// express: the collection_members check constraint and the jobs FTS5
// shadow table.
func Open(path string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// One pooled connection: sqlite is single-writer, and a ":memory:" DSN
	// would otherwise hand each pool connection its own empty database.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("store: unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{Conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	if err := db.Conn.AutoMigrate(
		&Artifact{},
		&ArtifactHash{},
		&Session{},
		&Job{},
		&JobInput{},
		&JobOutput{},
		&HashCache{},
		&Collection{},
		&CollectionMember{},
		&SchemaVersion{},
	); err != nil {
		return fmt.Errorf("store: automigrate: %w", err)
	}

	// gorm has no portable way to express the collection_members check
	// constraint or FTS5 virtual tables; apply them with raw SQL.
	if err := db.Conn.Exec(`
		CREATE TRIGGER IF NOT EXISTS chk_collection_member_type_insert
		BEFORE INSERT ON collection_members
		WHEN (NEW.artifact_id IS NULL) = (NEW.child_collection_id IS NULL)
		BEGIN
			SELECT RAISE(ABORT, 'collection_members: exactly one of artifact_id/child_collection_id must be set');
		END;
	`).Error; err != nil {
		return fmt.Errorf("store: create collection_members check trigger: %w", err)
	}

	if err := db.Conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS jobs_fts USING fts5(
			command, script, content='jobs', content_rowid='id'
		);
	`).Error; err != nil {
		return fmt.Errorf("store: create jobs_fts: %w", err)
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS jobs_fts_insert AFTER INSERT ON jobs BEGIN
			INSERT INTO jobs_fts(rowid, command, script) VALUES (new.id, new.command, new.script);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS jobs_fts_update AFTER UPDATE ON jobs BEGIN
			INSERT INTO jobs_fts(jobs_fts, rowid, command, script) VALUES('delete', old.id, old.command, old.script);
			INSERT INTO jobs_fts(rowid, command, script) VALUES (new.id, new.command, new.script);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS jobs_fts_delete AFTER DELETE ON jobs BEGIN
			INSERT INTO jobs_fts(jobs_fts, rowid, command, script) VALUES('delete', old.id, old.command, old.script);
		END;`,
	}
	for _, stmt := range triggers {
		if err := db.Conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("store: create jobs_fts trigger: %w", err)
		}
	}

	return db.Conn.Save(&SchemaVersion{Version: CurrentSchemaVersion}).Error
}

// Close releases the underlying sqlite connection.
func (db *DB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
