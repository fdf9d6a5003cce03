package storage

import (
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/amirhzn/mida-tracker-backend/internal/domain/status"
)

// SettingDefaultWarningThreshold is the settings key for the process-wide
// warning threshold.
const SettingDefaultWarningThreshold = "default_warning_threshold"

// GetSetting returns a setting value, or "" when the key is absent.
func (q *queries) GetSetting(key string) (string, error) {
	var value string
	err := q.db.QueryRow(`SELECT setting_value FROM settings WHERE setting_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting upserts a setting value.
func (q *queries) SetSetting(key, value string) error {
	_, err := q.db.Exec(`
		INSERT INTO settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at`,
		key, value, formatTime(now()))
	return err
}

// DefaultWarningThreshold reads the process-wide threshold, falling back
// to the built-in default when the setting is missing or malformed.
func (q *queries) DefaultWarningThreshold() (decimal.Decimal, error) {
	value, err := q.GetSetting(SettingDefaultWarningThreshold)
	if err != nil {
		return decimal.Zero, err
	}
	if value == "" {
		return status.DefaultWarningThreshold, nil
	}
	threshold, err := decimal.NewFromString(value)
	if err != nil {
		return status.DefaultWarningThreshold, nil
	}
	return threshold, nil
}

// SetDefaultWarningThreshold updates the process-wide threshold.
func (q *queries) SetDefaultWarningThreshold(threshold decimal.Decimal) error {
	return q.SetSetting(SettingDefaultWarningThreshold, threshold.String())
}
