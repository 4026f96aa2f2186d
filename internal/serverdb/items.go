package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/kb/internal/models"
)

var (
	// ErrItemNotFound is returned when an item id is unknown within the project.
	ErrItemNotFound = errors.New("item not found")
	// ErrCrossTenant rejects a batch naming an item owned by another project.
	ErrCrossTenant = errors.New("item belongs to another project")
	// ErrPositionOutOfRange rejects positions outside [MinPosition, MaxPosition].
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrInvalidColumn rejects unknown column keys.
	ErrInvalidColumn = errors.New("invalid column")
)

const itemColumns = `id, project_id, column_key, position, title, description, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (models.Item, error) {
	var it models.Item
	var col string
	err := row.Scan(&it.ID, &it.ProjectID, &col, &it.Position, &it.Title, &it.Description, &it.CreatedAt, &it.UpdatedAt)
	it.Column = models.ColumnKey(col)
	return it, err
}

// NewItem is the input for CreateItem. A zero Position appends the item
// after the current last item of the column.
type NewItem struct {
	Column      models.ColumnKey
	Position    int
	Title       string
	Description string
}

// CreateItem adds an item to a project's board.
func (db *ServerDB) CreateItem(projectID string, in NewItem) (models.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Item{}, fmt.Errorf("title is required")
	}
	if !in.Column.IsValid() {
		return models.Item{}, fmt.Errorf("%w: %q", ErrInvalidColumn, in.Column)
	}
	if in.Position != 0 && !models.PositionInRange(in.Position) {
		return models.Item{}, fmt.Errorf("%w: %d", ErrPositionOutOfRange, in.Position)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return models.Item{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := projectExists(tx, projectID); err != nil {
		return models.Item{}, err
	}

	pos := in.Position
	if pos == 0 {
		pos, err = nextPosition(tx, projectID, in.Column)
		if err != nil {
			return models.Item{}, err
		}
	}

	now := time.Now().UTC()
	it := models.Item{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Column:      in.Column,
		Position:    pos,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := tx.Exec(
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ProjectID, string(it.Column), it.Position, it.Title, it.Description, it.CreatedAt, it.UpdatedAt,
	); err != nil {
		return models.Item{}, fmt.Errorf("insert item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Item{}, fmt.Errorf("commit: %w", err)
	}
	return it, nil
}

// nextPosition returns the tail slot of a column: one gap past the current
// maximum, capped at MaxPosition.
func nextPosition(tx *sql.Tx, projectID string, col models.ColumnKey) (int, error) {
	var last sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MAX(position) FROM items WHERE project_id = ? AND column_key = ?`, projectID, string(col),
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("column max position: %w", err)
	}
	if !last.Valid {
		return models.MinPosition, nil
	}
	if int(last.Int64) >= models.MaxPosition {
		return 0, fmt.Errorf("%w: column %s has no tail slot left", ErrPositionOutOfRange, col)
	}
	return min(int(last.Int64)+models.PositionGap, models.MaxPosition), nil
}

// GetItem returns one item of a project. Items of other projects are
// reported as not found.
func (db *ServerDB) GetItem(projectID, itemID string) (models.Item, error) {
	it, err := scanItem(db.conn.QueryRow(
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND project_id = ?`, itemID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// ListItems returns a project's items ordered by column then position.
// A non-empty column restricts the result to that column.
func (db *ServerDB) ListItems(projectID string, column models.ColumnKey) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE project_id = ?`
	args := []any{projectID}
	if column != "" {
		query += ` AND column_key = ?`
		args = append(args, string(column))
	}
	query += ` ORDER BY column_key, position, created_at, id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: iterate: %w", err)
	}
	return items, nil
}

// DeleteItem removes an item from a project.
func (db *ServerDB) DeleteItem(projectID, itemID string) error {
	res, err := db.conn.Exec(`DELETE FROM items WHERE id = ? AND project_id = ?`, itemID, projectID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return nil
}

// ValidateBatch checks a position batch without touching the database.
func ValidateBatch(batch []models.ChangedItem) error {
	for _, c := range batch {
		if c.ID == "" {
			return fmt.Errorf("%w: empty item id", ErrItemNotFound)
		}
		if !c.Column.IsValid() {
			return fmt.Errorf("%w: %q for item %s", ErrInvalidColumn, c.Column, c.ID)
		}
		if !models.PositionInRange(c.Position) {
			return fmt.Errorf("%w: %d for item %s", ErrPositionOutOfRange, c.Position, c.ID)
		}
	}
	return nil
}

// UpdatePositions writes a batch of (id, column, position) triples for one
// project. Either every record is written or none is: a bad column or
// position, an unknown id, or an id owned by another project rejects the
// whole batch. Re-applying a batch leaves the rows unchanged. The canonical
// records are returned in batch order, last occurrence winning for repeated
// ids.
func (db *ServerDB) UpdatePositions(projectID string, batch []models.ChangedItem) ([]models.Item, error) {
	if err := ValidateBatch(batch); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return []models.Item{}, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := projectExists(tx, projectID); err != nil {
		return nil, err
	}

	final := make(map[string]models.ChangedItem, len(batch))
	var order []string
	for _, c := range batch {
		if _, ok := final[c.ID]; !ok {
			order = append(order, c.ID)
		}
		final[c.ID] = c
	}

	for _, id := range order {
		var owner string
		err := tx.QueryRow(`SELECT project_id FROM items WHERE id = ?`, id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("check item %s: %w", id, err)
		}
		if owner != projectID {
			return nil, fmt.Errorf("%w: %s", ErrCrossTenant, id)
		}
	}

	now := time.Now().UTC()
	for _, id := range order {
		c := final[id]
		if _, err := tx.Exec(
			`UPDATE items SET column_key = ?, position = ?, updated_at = ?
			 WHERE id = ? AND project_id = ? AND (column_key != ? OR position != ?)`,
			string(c.Column), c.Position, now, id, projectID, string(c.Column), c.Position,
		); err != nil {
			return nil, fmt.Errorf("update item %s: %w", id, err)
		}
	}

	records := make([]models.Item, 0, len(order))
	for _, id := range order {
		it, err := scanItem(tx.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
		if err != nil {
			return nil, fmt.Errorf("read back item %s: %w", id, err)
		}
		records = append(records, it)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return records, nil
}

// ItemsByID returns the current records for ids within a project, in the
// given order. Unknown ids are skipped.
func (db *ServerDB) ItemsByID(projectID string, ids []string) ([]models.Item, error) {
	out := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		it, err := db.GetItem(projectID, id)
		if errors.Is(err, ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}
