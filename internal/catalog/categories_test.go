package catalog

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/swen/dms/pkg/errors"
)

func expectCategoryExists(mock sqlmock.Sqlmock, id int64, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectDocumentExists(mock sqlmock.Sqlmock, id int64, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestCreateCategoryReturnsAssignedID(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("INSERT INTO categories").
		WithArgs("tax", "Tax documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	cat, err := repo.CreateCategory(context.Background(), "tax", "Tax documents")

	require.NoError(t, err)
	assert.Equal(t, int64(3), cat.ID)
	assert.Equal(t, "tax", cat.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCategoriesOrderedByName(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT id, name, description FROM categories ORDER BY name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(2), "invoices", "").
			AddRow(int64(1), "tax", "Tax documents"))

	cats, err := repo.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "invoices", cats[0].Name)
	assert.Equal(t, "tax", cats[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCategoryLinksDocument(t *testing.T) {
	repo, mock := newMockRepository(t)
	expectCategoryExists(mock, 9, true)
	mock.ExpectExec("INSERT INTO document_categories").
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AssignCategory(context.Background(), 1, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCategoryTwiceIsNoOp(t *testing.T) {
	repo, mock := newMockRepository(t)
	expectCategoryExists(mock, 9, true)
	mock.ExpectExec("INSERT INTO document_categories").
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectDocumentExists(mock, 1, true)

	err := repo.AssignCategory(context.Background(), 1, 9)

	require.NoError(t, err, "an existing link is a no-op, not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCategoryMissingCategory(t *testing.T) {
	repo, mock := newMockRepository(t)
	expectCategoryExists(mock, 42, false)

	err := repo.AssignCategory(context.Background(), 1, 42)

	assert.ErrorIs(t, err, apperrors.ErrCategoryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "no insert is attempted for a missing category")
}

func TestAssignCategoryMissingDocument(t *testing.T) {
	repo, mock := newMockRepository(t)
	expectCategoryExists(mock, 9, true)
	mock.ExpectExec("INSERT INTO document_categories").
		WithArgs(int64(99), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectDocumentExists(mock, 99, false)

	err := repo.AssignCategory(context.Background(), 99, 9)

	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignCategoryMissingLinkIsNoOp(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("DELETE FROM document_categories").
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UnassignCategory(context.Background(), 1, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
