package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }
func boolPtr(v bool) *bool { return &v }

func TestListBooksFilters(t *testing.T) {
	ds := setupTestDB(t)

	early, late := uintPtr(1620), uintPtr(1640)
	require.NoError(t, ds.CreateBook(&Book{
		PQTitle: "The tragedie of Macbeth", PQAuthor: "Shakespeare",
		PPPrinter: "Jaggard", PQYearEarly: early, PQYearLate: late,
		Starred: true, IsEEBOBook: true,
	}))
	require.NoError(t, ds.CreateBook(&Book{
		PQTitle: "Paradise lost", PQAuthor: "Milton",
		PQYearEarly: uintPtr(1667), PQYearLate: uintPtr(1667),
	}))
	require.NoError(t, ds.CreateBook(&Book{PQTitle: "An ignored pamphlet", Ignored: true}))

	books, total, err := ds.ListBooks(BookFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, books, 2)

	books, _, err = ds.ListBooks(BookFilter{Title: "Macbeth"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "The tragedie of Macbeth", books[0].PQTitle)

	books, _, err = ds.ListBooks(BookFilter{Author: "Milton"})
	require.NoError(t, err)
	require.Len(t, books, 1)

	books, _, err = ds.ListBooks(BookFilter{Printer: "Jaggard"})
	require.NoError(t, err)
	require.Len(t, books, 1)

	// Year ranges match on overlap.
	books, _, err = ds.ListBooks(BookFilter{YearEarly: uintPtr(1650), YearLate: uintPtr(1700)})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Paradise lost", books[0].PQTitle)

	books, _, err = ds.ListBooks(BookFilter{Starred: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, books, 1)

	books, _, err = ds.ListBooks(BookFilter{EEBO: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, books, 1)

	// Ignored books only show up when asked for explicitly.
	books, _, err = ds.ListBooks(BookFilter{Ignored: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "An ignored pamphlet", books[0].PQTitle)
}

func TestUpdateBookFreezesEEBOFields(t *testing.T) {
	ds := setupTestDB(t)

	book := &Book{PQTitle: "Catalog copy", VID: uintPtr(100), TCP: "A00001", IsEEBOBook: true}
	require.NoError(t, ds.CreateBook(book))

	// Curator-owned fields stay editable.
	book.PPNotes = "printer attribution uncertain"
	book.Starred = true
	require.NoError(t, ds.UpdateBook(book))

	// Catalog-sourced fields are frozen.
	frozen := *book
	frozen.VID = uintPtr(200)
	err := ds.UpdateBook(&frozen)
	require.Error(t, err)

	frozen = *book
	frozen.TCP = "A99999"
	assert.Error(t, ds.UpdateBook(&frozen))

	got, err := ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(100), *got.VID)
	assert.Equal(t, "A00001", got.TCP)
	assert.True(t, got.Starred)
}

func TestUpdateBookAllowsEEBOFieldsOnNonEEBOBooks(t *testing.T) {
	ds := setupTestDB(t)

	book := createTestBook(t, ds, "Locally scanned volume")
	book.VID = uintPtr(300)
	book.TCP = "B12345"
	require.NoError(t, ds.UpdateBook(book))

	got, err := ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(300), *got.VID)
}

func TestBookZipPath(t *testing.T) {
	book := &Book{Zipfile: "eebo_batch_7.zip", VID: uintPtr(12345)}
	assert.Equal(t, "eebo_batch_7.zip/12345/*.tif", book.ZipPath())
}
