package database

import (
	"fmt"

	"encar-telegram-bot/internal/types"
)

// IDAction is the bulk (id, action) projection the taxonomy crawl walks.
type IDAction struct {
	ID     int64
	Action string
}

// UpsertBrands rewrites the brands table, keyed by unique code.
func UpsertBrands(brands []types.TaxonomyNode) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin brand upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO brands (code, action, display_value, eng_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			action = excluded.action,
			display_value = excluded.display_value,
			eng_name = excluded.eng_name;`)
	if err != nil {
		return fmt.Errorf("failed to prepare brand upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range brands {
		if _, err = stmt.Exec(b.Code, b.Action, b.DisplayValue, b.EngName); err != nil {
			return fmt.Errorf("failed to upsert brand %s: %w", b.Code, err)
		}
	}
	return tx.Commit()
}

// UpsertModels rewrites models, keyed by (code, brand_id).
func UpsertModels(models []types.TaxonomyNode) error {
	return upsertChildNodes("models", "brand_id", models, true, false)
}

// UpsertGenerations rewrites generations, keyed by (code, model_id).
func UpsertGenerations(generations []types.TaxonomyNode) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin generation upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO generations (code, action, display_value, model_id, start_year, end_year)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code, model_id) DO UPDATE SET
			action = excluded.action,
			display_value = excluded.display_value,
			start_year = excluded.start_year,
			end_year = excluded.end_year;`)
	if err != nil {
		return fmt.Errorf("failed to prepare generation upsert: %w", err)
	}
	defer stmt.Close()

	for _, g := range generations {
		if _, err = stmt.Exec(g.Code, g.Action, g.DisplayValue, g.ParentID, g.StartYear, g.EndYear); err != nil {
			return fmt.Errorf("failed to upsert generation %s: %w", g.Code, err)
		}
	}
	return tx.Commit()
}

// UpsertModifications rewrites modifications, keyed by (code, generation_id).
func UpsertModifications(modifications []types.TaxonomyNode) error {
	return upsertChildNodes("modifications", "generation_id", modifications, false, false)
}

// UpsertConfigurations rewrites configurations, keyed by (code, modification_id).
// Callers chunk large batches.
func UpsertConfigurations(configurations []types.TaxonomyNode) error {
	return upsertChildNodes("configurations", "modification_id", configurations, false, true)
}

// upsertChildNodes is the shared (code, parent)-keyed upsert. Only models
// carry an eng_name column and only configurations carry a count column.
func upsertChildNodes(table, parentCol string, nodes []types.TaxonomyNode, withEngName, withCount bool) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin %s upsert: %w", table, err)
	}
	defer tx.Rollback()

	var query string
	switch {
	case withEngName:
		query = fmt.Sprintf(`
		INSERT INTO %s (code, action, display_value, eng_name, %s)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code, %s) DO UPDATE SET
			action = excluded.action,
			display_value = excluded.display_value,
			eng_name = excluded.eng_name;`, table, parentCol, parentCol)
	case withCount:
		query = fmt.Sprintf(`
		INSERT INTO %s (code, action, display_value, %s, count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code, %s) DO UPDATE SET
			action = excluded.action,
			display_value = excluded.display_value,
			count = excluded.count;`, table, parentCol, parentCol)
	default:
		query = fmt.Sprintf(`
		INSERT INTO %s (code, action, display_value, %s)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (code, %s) DO UPDATE SET
			action = excluded.action,
			display_value = excluded.display_value;`, table, parentCol, parentCol)
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s upsert: %w", table, err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		switch {
		case withEngName:
			_, err = stmt.Exec(n.Code, n.Action, n.DisplayValue, n.EngName, n.ParentID)
		case withCount:
			_, err = stmt.Exec(n.Code, n.Action, n.DisplayValue, n.ParentID, n.Count)
		default:
			_, err = stmt.Exec(n.Code, n.Action, n.DisplayValue, n.ParentID)
		}
		if err != nil {
			return fmt.Errorf("failed to upsert into %s (%s): %w", table, n.Code, err)
		}
	}
	return tx.Commit()
}

// AllActions returns every (id, action) pair of a taxonomy table, the bulk
// read each crawl stage iterates.
func AllActions(table string) ([]IDAction, error) {
	switch table {
	case "brands", "models", "generations", "modifications", "configurations":
	default:
		return nil, fmt.Errorf("unknown taxonomy table %q", table)
	}

	rows, err := DB.Query(fmt.Sprintf(`SELECT id, action FROM %s ORDER BY id;`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s actions: %w", table, err)
	}
	defer rows.Close()

	var pairs []IDAction
	for rows.Next() {
		var p IDAction
		if err := rows.Scan(&p.ID, &p.Action); err != nil {
			return nil, fmt.Errorf("failed to scan %s action: %w", table, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ConfigurationAction returns the precomputed search action of a taxonomy leaf.
func ConfigurationAction(configurationID int64) (string, error) {
	var action string
	err := DB.QueryRow(`SELECT action FROM configurations WHERE id = ?;`, configurationID).Scan(&action)
	if err != nil {
		return "", fmt.Errorf("failed to get action for configuration %d: %w", configurationID, err)
	}
	return action, nil
}

// TaxonomyPath resolves a configuration leaf up to its brand, returning the
// display names in brand, model, generation, modification, configuration order.
func TaxonomyPath(configurationID int64) ([5]string, error) {
	var path [5]string
	err := DB.QueryRow(`
		SELECT b.display_value, m.display_value, g.display_value, mo.display_value, c.display_value
		FROM configurations c
		JOIN modifications mo ON mo.id = c.modification_id
		JOIN generations g ON g.id = mo.generation_id
		JOIN models m ON m.id = g.model_id
		JOIN brands b ON b.id = m.brand_id
		WHERE c.id = ?;`, configurationID).
		Scan(&path[0], &path[1], &path[2], &path[3], &path[4])
	if err != nil {
		return path, fmt.Errorf("failed to resolve taxonomy path for configuration %d: %w", configurationID, err)
	}
	return path, nil
}
