package store

import (
	"context"
	"fmt"
)

type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
}

func CreateAdminUser(ctx context.Context, db Adapter, username, passwordHash string) error {
	_, err := db.Execute(ctx, `INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	return err
}

func GetAdminUser(ctx context.Context, db Adapter, username string) (*AdminUser, error) {
	row, err := db.FetchOne(ctx, `SELECT id, username, password_hash FROM admin_users WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("admin user %q not found", username)
	}
	return &AdminUser{
		ID:           row.Int64("id"),
		Username:     row.String("username"),
		PasswordHash: row.String("password_hash"),
	}, nil
}

func AdminUserExists(ctx context.Context, db Adapter) (bool, error) {
	row, err := db.FetchOne(ctx, `SELECT COUNT(*) AS count FROM admin_users`)
	if err != nil {
		return false, err
	}
	return row != nil && row.Int("count") > 0, nil
}
