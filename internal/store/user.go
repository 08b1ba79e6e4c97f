package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UpsertUser returns the user named name, creating it on first use.
func (db *DB) UpsertUser(name string) (*User, error) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		uuid.NewString(), name, now)
	if err != nil {
		return nil, err
	}
	var u User
	err = db.QueryRow(`SELECT id, name, created_at FROM users WHERE name = ?`, name).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns a user by id.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT id, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
