package catalog

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/postgres"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(&postgres.Client{DB: db}), mock
}

func TestUpdateTitleMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("UPDATE documents SET title").
		WithArgs("Report.pdf", int64(1)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.UpdateTitle(context.Background(), 1, "Report.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTitle)
	assert.Equal(t, 409, apperrors.HTTPStatusCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTitleMissingDocument(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("UPDATE documents SET title").
		WithArgs("Report.pdf", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTitle(context.Background(), 99, "Report.pdf")

	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnError(&pq.Error{Code: "23505"})

	doc, err := repo.Create(context.Background(), &Document{
		Title:       "Invoice.pdf",
		StorageKey:  "docs/2026/08/30/key.pdf",
		ContentType: "application/pdf",
	})

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissingDocument(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("FROM documents WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	doc, err := repo.GetByID(context.Background(), 7)

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
