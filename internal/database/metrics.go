package database

import (
	"fmt"
	"log"
)

// SaveMetric persists a single metric value to the database
func SaveMetric(metricName, labelKey, labelValue string, metricValue float64) error {
	query := `
	INSERT INTO metrics (metric_name, label_key, label_value, metric_value)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (metric_name, label_key, label_value)
	DO UPDATE SET metric_value = excluded.metric_value;`

	_, err := DB.Exec(query, metricName, labelKey, labelValue, metricValue)
	if err != nil {
		return fmt.Errorf("failed to save metric %s: %w", metricName, err)
	}
	return nil
}

// GetMetric retrieves a single metric value from the database
func GetMetric(metricName string) (float64, error) {
	query := `SELECT metric_value FROM metrics WHERE metric_name = ? AND label_key = '' AND label_value = '';`

	var value float64
	err := DB.QueryRow(query, metricName).Scan(&value)
	if err != nil {
		log.Printf("Metric %s not found, defaulting to 0", metricName)
		return 0, nil
	}
	return value, nil
}

// GetMetricsWithLabels retrieves labeled metric values grouped by label key/value
func GetMetricsWithLabels(metricName string) (map[string]map[string]float64, error) {
	query := `
	SELECT label_key, label_value, metric_value FROM metrics
	WHERE metric_name = ? AND label_key != '';`

	rows, err := DB.Query(query, metricName)
	if err != nil {
		return nil, fmt.Errorf("failed to query labeled metrics %s: %w", metricName, err)
	}
	defer rows.Close()

	result := make(map[string]map[string]float64)
	for rows.Next() {
		var labelKey, labelValue string
		var value float64
		if err := rows.Scan(&labelKey, &labelValue, &value); err != nil {
			return nil, fmt.Errorf("failed to scan labeled metric: %w", err)
		}
		if result[labelKey] == nil {
			result[labelKey] = make(map[string]float64)
		}
		result[labelKey][labelValue] = value
	}
	return result, rows.Err()
}
