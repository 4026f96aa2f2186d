package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrProjectNotFound is returned for unknown or deleted projects.
var ErrProjectNotFound = errors.New("project not found")

// Project is a tenant. Every item belongs to exactly one project.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

const projectColumns = `p.id, p.name, p.description, p.created_at, p.updated_at, p.deleted_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	p := &Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProject creates a project with ownerUserID as its first owner.
func (db *ServerDB) CreateProject(name, description, ownerUserID string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	id, err := generateID("p_")
	if err != nil {
		return nil, fmt.Errorf("generate project id: %w", err)
	}
	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := userExists(tx, ownerUserID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		`INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, description, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO memberships (project_id, user_id, role, invited_by, created_at) VALUES (?, ?, ?, '', ?)`,
		id, ownerUserID, RoleOwner, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Project{ID: id, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}, nil
}

// GetProject returns a live project by id, or nil.
func (db *ServerDB) GetProject(id string) (*Project, error) {
	p, err := scanProject(db.conn.QueryRow(
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = ? AND p.deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjectsForUser returns the live projects userID belongs to.
func (db *ServerDB) ListProjectsForUser(userID string) ([]*Project, error) {
	rows, err := db.conn.Query(`
		SELECT `+projectColumns+`
		FROM projects p
		JOIN memberships m ON m.project_id = p.id
		WHERE m.user_id = ? AND p.deleted_at IS NULL
		ORDER BY p.created_at, p.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: iterate: %w", err)
	}
	return projects, nil
}

// SoftDeleteProject hides a project. Its items stay on disk but become
// unreachable through every project-scoped query.
func (db *ServerDB) SoftDeleteProject(id string) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		`UPDATE projects SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("soft delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}

func projectExists(q querier, id string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM projects WHERE id = ? AND deleted_at IS NULL`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	return nil
}
