package store

import (
	"context"
	"strconv"
)

// GetSetting returns the value of a system setting, or the fallback when
// the key is absent.
func GetSetting(ctx context.Context, db Adapter, key, fallback string) (string, error) {
	row, err := db.FetchOne(ctx, `SELECT setting_value FROM system_settings WHERE setting_key = ?`, key)
	if err != nil {
		return fallback, err
	}
	if row == nil {
		return fallback, nil
	}
	return row.String("setting_value"), nil
}

// GetSettingInt is GetSetting for integer-valued settings.
func GetSettingInt(ctx context.Context, db Adapter, key string, fallback int) (int, error) {
	s, err := GetSetting(ctx, db, key, strconv.Itoa(fallback))
	if err != nil {
		return fallback, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// SetSetting upserts a system setting.
func SetSetting(ctx context.Context, db Adapter, key, value string) error {
	_, err := db.Execute(ctx, `
		INSERT INTO system_settings (setting_key, setting_value)
		VALUES (?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = datetime('now')
	`, key, value)
	return err
}
