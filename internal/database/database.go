package database

import (
	"database/sql"
	"fmt"
	"log"
)

var DB *sql.DB

func InitDB(dbPath string) error {
	var err error
	DB, err = sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS trackings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			configuration_id INTEGER NOT NULL,
			release_year TEXT DEFAULT NULL,
			mileage TEXT DEFAULT NULL,
			price TEXT DEFAULT NULL,
			car_ids TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 0,
			added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS brands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			action TEXT NOT NULL,
			display_value TEXT NOT NULL,
			eng_name TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS models (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL,
			action TEXT NOT NULL,
			display_value TEXT NOT NULL,
			eng_name TEXT NOT NULL DEFAULT '',
			brand_id INTEGER NOT NULL,
			UNIQUE (code, brand_id)
		);`,
		`CREATE TABLE IF NOT EXISTS generations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL,
			action TEXT NOT NULL,
			display_value TEXT NOT NULL,
			model_id INTEGER NOT NULL,
			start_year INTEGER DEFAULT NULL,
			end_year INTEGER DEFAULT NULL,
			UNIQUE (code, model_id)
		);`,
		`CREATE TABLE IF NOT EXISTS modifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL,
			action TEXT NOT NULL,
			display_value TEXT NOT NULL,
			generation_id INTEGER NOT NULL,
			UNIQUE (code, generation_id)
		);`,
		`CREATE TABLE IF NOT EXISTS configurations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL,
			action TEXT NOT NULL,
			display_value TEXT NOT NULL,
			modification_id INTEGER NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			UNIQUE (code, modification_id)
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT DEFAULT '',
			first_name TEXT DEFAULT '',
			last_name TEXT DEFAULT '',
			is_blocked INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS car_viewing_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			car_id INTEGER NOT NULL,
			viewed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS metrics (
			metric_name TEXT NOT NULL,
			label_key TEXT DEFAULT NULL,
			label_value TEXT DEFAULT NULL,
			metric_value REAL NOT NULL,
			PRIMARY KEY (metric_name, label_key, label_value)
		);`,
	}

	for _, stmt := range schema {
		if _, err = DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Println("Database initialized successfully.")
	return nil
}

func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
