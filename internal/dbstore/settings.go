package dbstore

import (
	"context"
	"time"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// GetSettings reads every row from the settings table and merges it
// with the built-in defaults via config.MergeDynamicSettings.
func (s *Store) GetSettings(ctx context.Context) (config.DynamicSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return config.DynamicSettings{}, senerrors.DBQuery(err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return config.DynamicSettings{}, senerrors.DBQuery(err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return config.DynamicSettings{}, senerrors.DBQuery(err)
	}

	return config.MergeDynamicSettings(raw), nil
}

// SetSetting writes a single settings-table row. Writing the literal
// value "null" reverts that key to its default on the next
// GetSettings call, per config.MergeDynamicSettings's null semantics.
// Returns ERR_102_INVALID_REQUEST for a key config doesn't recognize.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if !config.IsKnownDynamicSettingKey(key) {
		return senerrors.InvalidRequest("unknown setting key: " + key)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return wrapDBQuery(err)
}
