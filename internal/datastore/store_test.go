// store_test.go: integration tests against a real in-memory SQLite database
// (not mocks) to exercise actual GORM behavior.
package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pool would hand each connection its own empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, performAutoMigration(db, false, "SQLite", ":memory:"))
	return &DataStore{DB: db}
}

func createTestBook(t *testing.T, ds *DataStore, title string) *Book {
	t.Helper()
	book := &Book{PQTitle: title}
	require.NoError(t, ds.CreateBook(book))
	return book
}

// buildHierarchy creates one book with a full run hierarchy: one spread, a
// page run with one page, a line run with one line (y 10..40), a character
// run, and the "a" character class.
func buildHierarchy(t *testing.T, ds *DataStore) (book *Book, pageRun *PageRun, lineRun *LineRun, charRun *CharacterRun, page *Page, line *Line) {
	t.Helper()

	book = createTestBook(t, ds, "A discourse of witchcraft")

	pageRun = &PageRun{BookID: book.ID, Params: "pages-v1"}
	require.NoError(t, ds.CreatePageRun(pageRun))
	lineRun = &LineRun{BookID: book.ID, Params: "lines-v1"}
	require.NoError(t, ds.CreateLineRun(lineRun))
	charRun = &CharacterRun{BookID: book.ID, Params: "chars-v1"}
	require.NoError(t, ds.CreateCharacterRun(charRun))

	page = &Page{CreatedByRunID: pageRun.ID, Sequence: 0, Side: SideLeft}
	require.NoError(t, ds.CreatePage(page))

	line = &Line{CreatedByRunID: lineRun.ID, PageID: page.ID, Sequence: 0, YMin: 10, YMax: 40}
	require.NoError(t, ds.CreateLine(line))

	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "a", Group: GroupLowercase}))
	return book, pageRun, lineRun, charRun, page, line
}

func createTestCharacter(t *testing.T, ds *DataStore, run *CharacterRun, line *Line, seq uint) *Character {
	t.Helper()
	c := &Character{
		CreatedByRunID:   run.ID,
		LineID:           line.ID,
		Sequence:         seq,
		XMin:             int(seq) * 30,
		XMax:             int(seq)*30 + 20,
		CharacterClassID: "a",
		ClassProbability: 0.9,
	}
	require.NoError(t, ds.CreateCharacter(c))
	return c
}

func TestCreateBookAssignsIDAndLabel(t *testing.T) {
	ds := setupTestDB(t)

	vid := uint(12345)
	book := &Book{PQTitle: "The anatomy of melancholy, what it is, with all the kinds", VID: &vid}
	require.NoError(t, ds.CreateBook(book))

	assert.NotEmpty(t, book.ID)
	assert.NotEmpty(t, book.Label)
	assert.Contains(t, book.Label, "(12345)")
	assert.Contains(t, book.Label, "The anatomy of melancholy")
	// Default print-date range applies when none is supplied.
	assert.Equal(t, 1550, book.DateEarly.Year())
	assert.Equal(t, 1800, book.DateLate.Year())
}

func TestLabelRecomputedOnUpdate(t *testing.T) {
	ds := setupTestDB(t)
	book := createTestBook(t, ds, "Original title")
	oldLabel := book.Label

	book.PQTitle = "A corrected title"
	require.NoError(t, ds.UpdateBook(book))

	got, err := ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldLabel, got.Label)
	assert.Contains(t, got.Label, "A corrected title")
}

func TestCreateBookRequiresTitle(t *testing.T) {
	ds := setupTestDB(t)
	err := ds.CreateBook(&Book{})
	assert.Error(t, err)
}

func TestSpreadCountStaysConsistent(t *testing.T) {
	ds := setupTestDB(t)
	book := createTestBook(t, ds, "Spread counting")

	s1 := &Spread{BookID: book.ID, Sequence: 0}
	require.NoError(t, ds.CreateSpread(s1))
	got, err := ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.NSpreads)

	s2 := &Spread{BookID: book.ID, Sequence: 1}
	require.NoError(t, ds.CreateSpread(s2))
	got, err = ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(2), got.NSpreads)

	require.NoError(t, ds.DeleteSpread(s1.ID))
	got, err = ds.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.NSpreads)
}

func TestMostRecentRunOrdering(t *testing.T) {
	ds := setupTestDB(t)
	book := createTestBook(t, ds, "Versioned runs")

	older := &PageRun{BookID: book.ID, Params: "v1", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, ds.CreatePageRun(older))
	newer := &PageRun{BookID: book.ID, Params: "v2"}
	require.NoError(t, ds.CreatePageRun(newer))

	got, err := ds.MostRecentPageRun(book.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, "v2", got.Params)
}

func TestMostRecentPages(t *testing.T) {
	ds := setupTestDB(t)
	book := createTestBook(t, ds, "Repeated segmentation")

	older := &PageRun{BookID: book.ID, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, ds.CreatePageRun(older))
	require.NoError(t, ds.CreatePage(&Page{CreatedByRunID: older.ID, Sequence: 0, Side: SideSingle}))

	newer := &PageRun{BookID: book.ID}
	require.NoError(t, ds.CreatePageRun(newer))
	require.NoError(t, ds.CreatePage(&Page{CreatedByRunID: newer.ID, Sequence: 0, Side: SideLeft}))
	require.NoError(t, ds.CreatePage(&Page{CreatedByRunID: newer.ID, Sequence: 0, Side: SideRight}))

	pages, err := ds.MostRecentPages(book.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Equal(t, newer.ID, p.CreatedByRunID)
	}
}

func TestPageUniquenessPerRun(t *testing.T) {
	ds := setupTestDB(t)
	book := createTestBook(t, ds, "Unique pages")
	run := &PageRun{BookID: book.ID}
	require.NoError(t, ds.CreatePageRun(run))

	require.NoError(t, ds.CreatePage(&Page{CreatedByRunID: run.ID, Sequence: 3, Side: SideLeft}))
	// Same sequence on the other side is fine.
	require.NoError(t, ds.CreatePage(&Page{CreatedByRunID: run.ID, Sequence: 3, Side: SideRight}))
	// Exact duplicate is not.
	err := ds.CreatePage(&Page{CreatedByRunID: run.ID, Sequence: 3, Side: SideLeft})
	assert.Error(t, err)
}

func TestCreateEntityRejectsMissingParents(t *testing.T) {
	ds := setupTestDB(t)
	_, _, lineRun, charRun, page, line := buildHierarchy(t, ds)

	assert.Error(t, ds.CreatePageRun(&PageRun{BookID: "no-such-book"}))
	assert.Error(t, ds.CreatePage(&Page{CreatedByRunID: "no-such-run", Side: SideSingle}))
	assert.Error(t, ds.CreateLine(&Line{CreatedByRunID: lineRun.ID, PageID: "no-such-page", YMin: 0, YMax: 1}))
	assert.Error(t, ds.CreateLine(&Line{CreatedByRunID: "no-such-run", PageID: page.ID, YMin: 0, YMax: 1}))
	assert.Error(t, ds.CreateCharacter(&Character{
		CreatedByRunID: charRun.ID, LineID: line.ID, CharacterClassID: "no-such-class",
	}))
	assert.Error(t, ds.CreateCharacter(&Character{
		CreatedByRunID: charRun.ID, LineID: "no-such-line", CharacterClassID: "a",
	}))
}

func TestCharacterInheritsLineExtent(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)

	c := &Character{
		CreatedByRunID:   charRun.ID,
		LineID:           line.ID,
		XMin:             5,
		XMax:             25,
		CharacterClassID: "a",
		ClassProbability: 0.8,
	}
	require.NoError(t, ds.CreateCharacter(c))

	got, err := ds.GetCharacter(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Height(line))
	box := got.Box(line)
	assert.Equal(t, 5, box.X)
	assert.Equal(t, 10, box.Y)
	assert.Equal(t, 20, box.W)
	assert.Equal(t, 30, box.H)
}

func TestDeleteRunCascades(t *testing.T) {
	ds := setupTestDB(t)
	book, _, lineRun, charRun, page, line := buildHierarchy(t, ds)

	c1 := createTestCharacter(t, ds, charRun, line, 0)
	createTestCharacter(t, ds, charRun, line, 1)

	// A second character run over the same line survives deletion of the first.
	otherRun := &CharacterRun{BookID: book.ID, Params: "chars-v2"}
	require.NoError(t, ds.CreateCharacterRun(otherRun))
	survivor := createTestCharacter(t, ds, otherRun, line, 0)

	require.NoError(t, ds.DeleteCharacterRun(charRun.ID))

	_, err := ds.GetCharacter(c1.ID)
	assert.Error(t, err)
	_, err = ds.GetCharacter(survivor.ID)
	assert.NoError(t, err)

	// Deleting the line run takes its lines and their remaining characters.
	require.NoError(t, ds.DeleteLineRun(lineRun.ID))
	_, err = ds.GetLine(line.ID)
	assert.Error(t, err)
	_, err = ds.GetCharacter(survivor.ID)
	assert.Error(t, err)

	// The page from the page run is untouched.
	_, err = ds.GetPage(page.ID)
	assert.NoError(t, err)
}

func TestDeleteBookCascadesEverything(t *testing.T) {
	ds := setupTestDB(t)
	book, pageRun, lineRun, charRun, page, line := buildHierarchy(t, ds)
	c := createTestCharacter(t, ds, charRun, line, 0)
	spread := &Spread{BookID: book.ID, Sequence: 0}
	require.NoError(t, ds.CreateSpread(spread))

	require.NoError(t, ds.DeleteBook(book.ID))

	for _, check := range []func() error{
		func() error { _, err := ds.GetBook(book.ID); return err },
		func() error { _, err := ds.GetSpread(spread.ID); return err },
		func() error { _, err := ds.GetPageRun(pageRun.ID); return err },
		func() error { _, err := ds.GetLineRun(lineRun.ID); return err },
		func() error { _, err := ds.GetCharacterRun(charRun.ID); return err },
		func() error { _, err := ds.GetPage(page.ID); return err },
		func() error { _, err := ds.GetLine(line.ID); return err },
		func() error { _, err := ds.GetCharacter(c.ID); return err },
	} {
		assert.Error(t, check())
	}
}

func TestRunComponentCounts(t *testing.T) {
	ds := setupTestDB(t)
	_, pageRun, lineRun, charRun, _, line := buildHierarchy(t, ds)
	createTestCharacter(t, ds, charRun, line, 0)
	createTestCharacter(t, ds, charRun, line, 1)

	n, err := ds.PageRunComponentCount(pageRun.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ds.LineRunComponentCount(lineRun.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ds.CharacterRunComponentCount(charRun.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTableCounts(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)
	createTestCharacter(t, ds, charRun, line, 0)

	counts, err := ds.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["books"])
	assert.Equal(t, int64(1), counts["pages"])
	assert.Equal(t, int64(1), counts["lines"])
	assert.Equal(t, int64(1), counts["characters"])
	assert.Equal(t, int64(0), counts["spreads"])
}
