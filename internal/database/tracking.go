package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"encar-telegram-bot/internal/types"
)

// CreateTracking saves a new tracking record. Records start inactive: the
// first reconciliation pass seeds car_ids and flips is_active.
func CreateTracking(userID int64, filter types.FilterSpec) (int64, error) {
	res, err := DB.Exec(`
		INSERT INTO trackings (user_id, configuration_id, release_year, mileage, price, car_ids)
		VALUES (?, ?, ?, ?, ?, '[]');`,
		userID, filter.ConfigurationID,
		filter.ReleaseYear.String(), filter.Mileage.String(), filter.Price.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tracking: %w", err)
	}
	return res.LastInsertId()
}

// GetTracking fetches one tracking record by id.
func GetTracking(trackID int64) (*types.Tracking, error) {
	row := DB.QueryRow(`
		SELECT id, user_id, configuration_id, release_year, mileage, price, car_ids, is_active, added_at
		FROM trackings WHERE id = ?;`, trackID)

	track, err := scanTracking(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking %d not found", trackID)
	}
	return track, err
}

// AllTrackings fetches every tracking record, active or not.
func AllTrackings() ([]*types.Tracking, error) {
	rows, err := DB.Query(`
		SELECT id, user_id, configuration_id, release_year, mileage, price, car_ids, is_active, added_at
		FROM trackings ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trackings: %w", err)
	}
	defer rows.Close()

	var trackings []*types.Tracking
	for rows.Next() {
		track, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		trackings = append(trackings, track)
	}
	return trackings, rows.Err()
}

// TrackingsByUser fetches one page of a user's trackings, 10 per page.
func TrackingsByUser(userID int64, page int) ([]*types.Tracking, error) {
	rows, err := DB.Query(`
		SELECT id, user_id, configuration_id, release_year, mileage, price, car_ids, is_active, added_at
		FROM trackings WHERE user_id = ? ORDER BY id LIMIT 10 OFFSET ?;`, userID, page*10)
	if err != nil {
		return nil, fmt.Errorf("failed to query trackings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var trackings []*types.Tracking
	for rows.Next() {
		track, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		trackings = append(trackings, track)
	}
	return trackings, rows.Err()
}

// TrackingCount returns the number of trackings a user has saved.
func TrackingCount(userID int64) (int64, error) {
	var count int64
	err := DB.QueryRow(`SELECT COUNT(id) FROM trackings WHERE user_id = ?;`, userID).Scan(&count)
	return count, err
}

// DeleteTracking removes a tracking on explicit user request.
func DeleteTracking(trackID int64) error {
	_, err := DB.Exec(`DELETE FROM trackings WHERE id = ?;`, trackID)
	if err != nil {
		return fmt.Errorf("failed to delete tracking %d: %w", trackID, err)
	}
	return nil
}

// UpdateCarIDs replaces the known id set of a tracking. Callers pass the
// union of the old and freshly fetched ids; ids are never removed here.
func UpdateCarIDs(trackID int64, carIDs []int64) error {
	if carIDs == nil {
		carIDs = []int64{}
	}
	encoded, err := json.Marshal(carIDs)
	if err != nil {
		return fmt.Errorf("failed to encode car ids: %w", err)
	}
	_, err = DB.Exec(`UPDATE trackings SET car_ids = ? WHERE id = ?;`, string(encoded), trackID)
	if err != nil {
		return fmt.Errorf("failed to update car ids for tracking %d: %w", trackID, err)
	}
	return nil
}

// ActivateTracking flips a freshly seeded tracking to active.
func ActivateTracking(trackID int64) error {
	_, err := DB.Exec(`UPDATE trackings SET is_active = 1 WHERE id = ?;`, trackID)
	if err != nil {
		return fmt.Errorf("failed to activate tracking %d: %w", trackID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracking(row rowScanner) (*types.Tracking, error) {
	var (
		track       types.Tracking
		releaseYear sql.NullString
		mileage     sql.NullString
		price       sql.NullString
		carIDsJSON  string
	)
	err := row.Scan(
		&track.ID, &track.UserID, &track.Filter.ConfigurationID,
		&releaseYear, &mileage, &price, &carIDsJSON, &track.IsActive, &track.AddedAt,
	)
	if err != nil {
		return nil, err
	}

	if track.Filter.ReleaseYear, err = types.ParseRange(releaseYear.String); err != nil {
		return nil, fmt.Errorf("tracking %d: %w", track.ID, err)
	}
	if track.Filter.Mileage, err = types.ParseRange(mileage.String); err != nil {
		return nil, fmt.Errorf("tracking %d: %w", track.ID, err)
	}
	if track.Filter.Price, err = types.ParseRange(price.String); err != nil {
		return nil, fmt.Errorf("tracking %d: %w", track.ID, err)
	}
	if err = json.Unmarshal([]byte(carIDsJSON), &track.CarIDs); err != nil {
		return nil, fmt.Errorf("tracking %d: failed to decode car ids: %w", track.ID, err)
	}
	return &track, nil
}
