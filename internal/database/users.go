package database

import (
	"database/sql"
	"fmt"

	"encar-telegram-bot/internal/types"
)

// UpsertUser records a /start, keeping the profile fields fresh. Returns
// true when the user was seen for the first time.
func UpsertUser(user types.User) (bool, error) {
	var exists int
	err := DB.QueryRow(`SELECT COUNT(id) FROM users WHERE id = ?;`, user.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", user.ID, err)
	}

	if exists > 0 {
		_, err = DB.Exec(`
			UPDATE users SET username = ?, first_name = ?, last_name = ? WHERE id = ?;`,
			user.Username, user.FirstName, user.LastName, user.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update user %d: %w", user.ID, err)
		}
		return false, nil
	}

	_, err = DB.Exec(`
		INSERT INTO users (id, username, first_name, last_name) VALUES (?, ?, ?, ?);`,
		user.ID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return false, fmt.Errorf("failed to insert user %d: %w", user.ID, err)
	}
	return true, nil
}

// GetUser fetches a user profile; nil when unknown.
func GetUser(userID int64) (*types.User, error) {
	var user types.User
	err := DB.QueryRow(`
		SELECT id, username, first_name, last_name, is_blocked, started_at
		FROM users WHERE id = ?;`, userID).
		Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.IsBlocked, &user.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

// IsBlocked reports whether a user has been banned from the bot.
func IsBlocked(userID int64) (bool, error) {
	var blocked bool
	err := DB.QueryRow(`SELECT is_blocked FROM users WHERE id = ?;`, userID).Scan(&blocked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return blocked, err
}

// StartStatistics aggregates user starts for the daily digest.
func StartStatistics() (*types.StartStats, error) {
	stats := &types.StartStats{ByDay: make(map[string]int64)}

	counts := []struct {
		dest *int64
		cond string
	}{
		{&stats.Today, "date(started_at) = date('now')"},
		{&stats.Yesterday, "date(started_at) = date('now', '-1 day')"},
		{&stats.Last3Days, "date(started_at) >= date('now', '-2 day')"},
		{&stats.Last7Days, "date(started_at) >= date('now', '-6 day')"},
	}
	for _, c := range counts {
		err := DB.QueryRow(`SELECT COUNT(id) FROM users WHERE ` + c.cond + `;`).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("failed to count user starts: %w", err)
		}
	}

	rows, err := DB.Query(`
		SELECT date(started_at), COUNT(id) FROM users
		WHERE date(started_at) >= date('now', '-6 day')
		GROUP BY date(started_at);`)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-day starts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan per-day starts: %w", err)
		}
		stats.ByDay[day] = count
	}
	return stats, rows.Err()
}

// RecordCarView marks a listing as seen by a user (UI "already viewed" flag,
// not reconciliation dedup).
func RecordCarView(userID, carID int64) error {
	_, err := DB.Exec(`
		INSERT INTO car_viewing_history (user_id, car_id) VALUES (?, ?);`, userID, carID)
	if err != nil {
		return fmt.Errorf("failed to record car view: %w", err)
	}
	return nil
}

// HasViewedCar reports whether the user opened this listing before.
func HasViewedCar(userID, carID int64) (bool, error) {
	var count int
	err := DB.QueryRow(`
		SELECT COUNT(id) FROM car_viewing_history WHERE user_id = ? AND car_id = ?;`,
		userID, carID).Scan(&count)
	return count > 0, err
}
