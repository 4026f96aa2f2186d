package serverdb

import (
	"errors"
	"testing"
)

type authFixture struct {
	db                              *ServerDB
	owner, writer, reader, outsider *User
	project                         *Project
}

func setupAuthTest(t *testing.T) authFixture {
	t.Helper()
	db := newTestDB(t)
	f := authFixture{db: db}
	f.owner, _ = db.CreateUser("owner@test.com")
	f.writer, _ = db.CreateUser("writer@test.com")
	f.reader, _ = db.CreateUser("reader@test.com")
	f.outsider, _ = db.CreateUser("outsider@test.com")

	f.project, _ = db.CreateProject("board", "", f.owner.ID)
	db.AddMember(f.project.ID, f.writer.ID, RoleWriter, f.owner.ID)
	db.AddMember(f.project.ID, f.reader.ID, RoleReader, f.owner.ID)
	return f
}

func TestAuthorizeMatrix(t *testing.T) {
	f := setupAuthTest(t)

	tests := []struct {
		name   string
		user   *User
		check  func(projectID, userID string) error
		wantOK bool
	}{
		{"owner views", f.owner, f.db.CanViewBoard, true},
		{"owner moves", f.owner, f.db.CanMoveItems, true},
		{"owner manages", f.owner, f.db.CanManageMembers, true},
		{"owner deletes project", f.owner, f.db.CanDeleteProject, true},
		{"writer views", f.writer, f.db.CanViewBoard, true},
		{"writer moves", f.writer, f.db.CanMoveItems, true},
		{"writer manages", f.writer, f.db.CanManageMembers, false},
		{"reader views", f.reader, f.db.CanViewBoard, true},
		{"reader moves", f.reader, f.db.CanMoveItems, false},
		{"outsider views", f.outsider, f.db.CanViewBoard, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(f.project.ID, tt.user.ID)
			if tt.wantOK && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("expected denied")
			}
		})
	}
}

func TestAuthorizeErrors(t *testing.T) {
	f := setupAuthTest(t)

	if err := f.db.CanViewBoard(f.project.ID, f.outsider.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("outsider: expected ErrNotMember, got %v", err)
	}
	if err := f.db.CanMoveItems(f.project.ID, f.reader.ID); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("reader move: expected ErrInsufficientRole, got %v", err)
	}
	if err := f.db.CanViewBoard("p_missing", f.owner.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("missing project: expected ErrNotMember, got %v", err)
	}
}
