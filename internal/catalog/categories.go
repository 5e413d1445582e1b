package catalog

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/swen/dms/pkg/errors"
)

// CreateCategory inserts a new category. Names are unique.
func (r *Repository) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	cat := &Category{Name: name, Description: description}
	err := r.db.DB.QueryRowContext(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
		name, description,
	).Scan(&cat.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting category %q: %w", name, err)
	}
	return cat, nil
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// AssignCategory links a document to a category. Assigning twice is a no-op
// (set semantics).
func (r *Repository) AssignCategory(ctx context.Context, documentID, categoryID int64) error {
	if err := r.requireCategory(ctx, categoryID); err != nil {
		return err
	}
	res, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO document_categories (document_id, category_id)
		 SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM documents WHERE id = $1)
		 ON CONFLICT DO NOTHING`,
		documentID, categoryID)
	if err != nil {
		return fmt.Errorf("assigning category %d to document %d: %w", categoryID, documentID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		// Either the document is missing or the link already exists.
		exists, err := r.ExistsByID(ctx, documentID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.ErrDocumentNotFound
		}
	}
	return nil
}

// UnassignCategory removes the link between a document and a category.
// Removing a link that does not exist is a no-op.
func (r *Repository) UnassignCategory(ctx context.Context, documentID, categoryID int64) error {
	_, err := r.db.DB.ExecContext(ctx,
		`DELETE FROM document_categories WHERE document_id = $1 AND category_id = $2`,
		documentID, categoryID)
	if err != nil {
		return fmt.Errorf("unassigning category %d from document %d: %w", categoryID, documentID, err)
	}
	return nil
}

// ExistsByID reports whether a document with the given ID exists.
func (r *Repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking document %d: %w", id, err)
	}
	return exists, nil
}

func (r *Repository) requireCategory(ctx context.Context, id int64) error {
	var exists bool
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	if err == sql.ErrNoRows || (err == nil && !exists) {
		return apperrors.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("checking category %d: %w", id, err)
	}
	return nil
}
