package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMembershipNotFound is returned when a user is not in a project.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrLastOwner guards against leaving a project without an owner.
	ErrLastOwner = errors.New("cannot remove last owner")
	// ErrInvalidRole is returned for roles other than owner, writer and reader.
	ErrInvalidRole = errors.New("invalid role")
)

// Membership is a user's role in a project.
type Membership struct {
	ProjectID string
	UserID    string
	Role      string
	InvitedBy string
	CreatedAt time.Time
}

// AddMember grants userID role in projectID.
func (db *ServerDB) AddMember(projectID, userID, role, invitedBy string) (*Membership, error) {
	if roleLevel(role) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := projectExists(db.conn, projectID); err != nil {
		return nil, err
	}
	if err := userExists(db.conn, userID); err != nil {
		return nil, err
	}

	m := &Membership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		InvitedBy: invitedBy,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := db.conn.Exec(
		`INSERT INTO memberships (project_id, user_id, role, invited_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ProjectID, m.UserID, m.Role, m.InvitedBy, m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

// GetMembership returns userID's membership in projectID, or nil.
func (db *ServerDB) GetMembership(projectID, userID string) (*Membership, error) {
	m := &Membership{}
	err := db.conn.QueryRow(
		`SELECT project_id, user_id, role, invited_by, created_at FROM memberships WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&m.ProjectID, &m.UserID, &m.Role, &m.InvitedBy, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// ListMembers returns a project's members in join order.
func (db *ServerDB) ListMembers(projectID string) ([]*Membership, error) {
	rows, err := db.conn.Query(
		`SELECT project_id, user_id, role, invited_by, created_at FROM memberships WHERE project_id = ? ORDER BY created_at, user_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.InvitedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: iterate: %w", err)
	}
	return members, nil
}

// RemoveMember takes userID out of projectID. The last owner cannot leave.
func (db *ServerDB) RemoveMember(projectID, userID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role string
	err = tx.QueryRow(
		`SELECT role FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMembershipNotFound
	}
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}

	if role == RoleOwner {
		var owners int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memberships WHERE project_id = ? AND role = ?`, projectID, RoleOwner,
		).Scan(&owners); err != nil {
			return fmt.Errorf("count owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if _, err := tx.Exec(`DELETE FROM memberships WHERE project_id = ? AND user_id = ?`, projectID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
