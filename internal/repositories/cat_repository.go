package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MatviyVovchuk/cat-registry/internal/models"
)

var ErrCatNotFound = errors.New("cat not found")

type CatRepository interface {
	Add(ctx context.Context, cat models.Cat) (models.Cat, error)
	GetById(ctx context.Context, id int64) (models.Cat, error)
	GetByIds(ctx context.Context, ids []int64) ([]models.Cat, error)
	GetAll(ctx context.Context) ([]models.Cat, error)
	Update(ctx context.Context, id int64, fields models.CatFields) (int64, error)
	DeleteById(ctx context.Context, id int64) (int64, error)
	DeleteByIds(ctx context.Context, ids []int64) (int64, error)
}

type MySQLCatRepository struct {
	db *sql.DB
}

func NewMySQLCatRepository(db *sql.DB) *MySQLCatRepository {
	return &MySQLCatRepository{db: db}
}

func (m *MySQLCatRepository) Add(ctx context.Context, cat models.Cat) (models.Cat, error) {
	newCatQuery := `INSERT INTO cats(cat_name, user_email, cats_image_id, created) VALUES(?,?,?,?)`
	result, err := m.db.ExecContext(ctx, newCatQuery, cat.Name, cat.Email, cat.ImageId, cat.Created)
	if err != nil {
		return models.Cat{}, fmt.Errorf("failed to add new cat: %w", err)
	}

	cat.Id, err = result.LastInsertId()
	if err != nil {
		return models.Cat{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return cat, nil
}

func (m *MySQLCatRepository) GetById(ctx context.Context, id int64) (models.Cat, error) {
	getByIdQuery := "SELECT id, cat_name, user_email, cats_image_id, created FROM cats WHERE id = ?"
	cat, err := scanCat(m.db.QueryRowContext(ctx, getByIdQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Cat{}, ErrCatNotFound
		}
		return models.Cat{}, fmt.Errorf("failed to get cat by id: %w", err)
	}
	return cat, nil
}

func (m *MySQLCatRepository) GetByIds(ctx context.Context, ids []int64) ([]models.Cat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		"SELECT id, cat_name, user_email, cats_image_id, created FROM cats WHERE id IN (%s) ORDER BY created DESC, id DESC",
		placeholders(len(ids)))
	rows, err := m.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cats by ids: %w", err)
	}
	defer rows.Close()

	return collectCats(rows)
}

func (m *MySQLCatRepository) GetAll(ctx context.Context) ([]models.Cat, error) {
	getAllQuery := "SELECT id, cat_name, user_email, cats_image_id, created FROM cats ORDER BY created DESC, id DESC"
	rows, err := m.db.QueryContext(ctx, getAllQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cats: %w", err)
	}
	defer rows.Close()

	return collectCats(rows)
}

// Update writes only the non-nil fields and returns the affected row count.
// An absent id is not an error, it just affects zero rows.
func (m *MySQLCatRepository) Update(ctx context.Context, id int64, fields models.CatFields) (int64, error) {
	var set []string
	var args []any
	if fields.Name != nil {
		set = append(set, "cat_name = ?")
		args = append(args, *fields.Name)
	}
	if fields.Email != nil {
		set = append(set, "user_email = ?")
		args = append(args, *fields.Email)
	}
	if fields.ImageId != nil {
		set = append(set, "cats_image_id = ?")
		args = append(args, *fields.ImageId)
	}
	if len(set) == 0 {
		return 0, nil
	}
	args = append(args, id)

	updateCatQuery := fmt.Sprintf("UPDATE cats SET %s WHERE id = ?", strings.Join(set, ", "))
	result, err := m.db.ExecContext(ctx, updateCatQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update cat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func (m *MySQLCatRepository) DeleteById(ctx context.Context, id int64) (int64, error) {
	deleteCatQuery := "DELETE FROM cats WHERE id = ?"
	result, err := m.db.ExecContext(ctx, deleteCatQuery, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

// DeleteByIds removes all matching rows in one statement so readers never
// observe a partially applied bulk delete.
func (m *MySQLCatRepository) DeleteByIds(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM cats WHERE id IN (%s)", placeholders(len(ids)))
	result, err := m.db.ExecContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cats: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCat(row rowScanner) (models.Cat, error) {
	var c models.Cat
	var imageId sql.NullString
	if err := row.Scan(&c.Id, &c.Name, &c.Email, &imageId, &c.Created); err != nil {
		return models.Cat{}, err
	}
	if imageId.Valid {
		c.ImageId = &imageId.String
	}
	return c, nil
}

func collectCats(rows *sql.Rows) ([]models.Cat, error) {
	var cats []models.Cat
	for rows.Next() {
		cat, err := scanCat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return cats, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
