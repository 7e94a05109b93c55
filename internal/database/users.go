// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrUserNotFound is returned when a user ID does not exist.
var ErrUserNotFound = errors.New("user not found")

// User is a row in the users table.
type User struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Age  int    `db:"age" json:"age"`
}

// NewUser is the payload for creating or updating a user.
type NewUser struct {
	Name string `json:"name" validate:"required,max=50"`
	Age  int    `json:"age" validate:"min=0,max=200"`
}

// UserRepository provides CRUD access to the users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a repository over db.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureSchema creates the users table if it does not exist.
func (r *UserRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS users (
			id   BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			age  INT NOT NULL
		)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Create inserts a user and returns its generated ID.
func (r *UserRepository) Create(ctx context.Context, user NewUser) (int64, error) {
	defer observe("create", time.Now())

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, age) VALUES (?, ?)", user.Name, user.Age)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted user id: %w", err)
	}
	return id, nil
}

// Get returns the user with the given ID.
func (r *UserRepository) Get(ctx context.Context, id int64) (*User, error) {
	defer observe("get", time.Now())

	var user User
	err := r.db.GetContext(ctx, &user,
		"SELECT id, name, age FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Update replaces the user's name and age.
func (r *UserRepository) Update(ctx context.Context, id int64, user NewUser) error {
	defer observe("update", time.Now())

	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET name = ?, age = ? WHERE id = ?", user.Name, user.Age, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user with the given ID.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	defer observe("delete", time.Now())

	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by ID.
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	defer observe("list", time.Now())

	users := []User{}
	err := r.db.SelectContext(ctx, &users, "SELECT id, name, age FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
