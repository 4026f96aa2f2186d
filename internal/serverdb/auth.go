package serverdb

import (
	"errors"
	"fmt"
)

// Roles, from most to least privileged.
const (
	RoleOwner  = "owner"
	RoleWriter = "writer"
	RoleReader = "reader"
)

var (
	// ErrNotMember is returned when the caller has no role in the project.
	ErrNotMember = errors.New("not a member of project")
	// ErrInsufficientRole is returned when the caller's role is too low.
	ErrInsufficientRole = errors.New("insufficient permissions")
)

func roleLevel(role string) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleWriter:
		return 2
	case RoleReader:
		return 1
	}
	return 0
}

// Authorize requires userID to hold at least requiredRole in projectID.
func (db *ServerDB) Authorize(projectID, userID, requiredRole string) error {
	m, err := db.GetMembership(projectID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if m == nil {
		return fmt.Errorf("%w %s", ErrNotMember, projectID)
	}
	if roleLevel(m.Role) < roleLevel(requiredRole) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientRole, m.Role, requiredRole)
	}
	return nil
}

// CanViewBoard allows readers and above to fetch items.
func (db *ServerDB) CanViewBoard(projectID, userID string) error {
	return db.Authorize(projectID, userID, RoleReader)
}

// CanMoveItems allows writers and above to create, move and delete items.
func (db *ServerDB) CanMoveItems(projectID, userID string) error {
	return db.Authorize(projectID, userID, RoleWriter)
}

// CanManageMembers allows owners to add and remove members.
func (db *ServerDB) CanManageMembers(projectID, userID string) error {
	return db.Authorize(projectID, userID, RoleOwner)
}

// CanDeleteProject allows owners to delete the project.
func (db *ServerDB) CanDeleteProject(projectID, userID string) error {
	return db.Authorize(projectID, userID, RoleOwner)
}
