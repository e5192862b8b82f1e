// interfaces.go: the interface for database operations and the shared GORM
// store implementation it is built on.
package datastore

import (
	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/conf"
	"github.com/printprob/bookdb/internal/errors"
	"github.com/printprob/bookdb/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation and defines the
// operations the service performs against it.
type Interface interface {
	Open() error
	Close() error
	SetMetrics(m *metrics.DatastoreMetrics)
	TableCounts() (map[string]int64, error)

	// Books
	CreateBook(book *Book) error
	GetBook(id string) (Book, error)
	ListBooks(filter BookFilter) ([]Book, int64, error)
	UpdateBook(book *Book) error
	DeleteBook(id string) error

	// Spreads
	CreateSpread(spread *Spread) error
	GetSpread(id string) (Spread, error)
	ListSpreads(bookID string, limit, offset int) ([]Spread, int64, error)
	UpdateSpread(spread *Spread) error
	DeleteSpread(id string) error

	// Page runs
	CreatePageRun(run *PageRun) error
	GetPageRun(id string) (PageRun, error)
	ListPageRuns(bookID string, limit, offset int) ([]PageRun, int64, error)
	MostRecentPageRun(bookID string) (PageRun, error)
	DeletePageRun(id string) error
	PageRunComponentCount(id string) (int64, error)

	// Line runs
	CreateLineRun(run *LineRun) error
	GetLineRun(id string) (LineRun, error)
	ListLineRuns(bookID string, limit, offset int) ([]LineRun, int64, error)
	MostRecentLineRun(bookID string) (LineRun, error)
	DeleteLineRun(id string) error
	LineRunComponentCount(id string) (int64, error)

	// Character runs
	CreateCharacterRun(run *CharacterRun) error
	GetCharacterRun(id string) (CharacterRun, error)
	ListCharacterRuns(bookID string, limit, offset int) ([]CharacterRun, int64, error)
	MostRecentCharacterRun(bookID string) (CharacterRun, error)
	DeleteCharacterRun(id string) error
	CharacterRunComponentCount(id string) (int64, error)

	// Pages
	CreatePage(page *Page) error
	GetPage(id string) (Page, error)
	ListPages(filter PageFilter) ([]Page, int64, error)
	DeletePage(id string) error
	MostRecentPages(bookID string) ([]Page, error)

	// Lines
	CreateLine(line *Line) error
	GetLine(id string) (Line, error)
	ListLines(filter LineFilter) ([]Line, int64, error)
	DeleteLine(id string) error

	// Characters
	CreateCharacter(character *Character) error
	GetCharacter(id string) (Character, error)
	ListCharacters(filter CharacterFilter) ([]Character, int64, error)
	DeleteCharacter(id string) error
	AnnotateCharacters(ids []string, classname string) error

	// Character classes
	CreateCharacterClass(class *CharacterClass) error
	GetCharacterClass(classname string) (CharacterClass, error)
	ListCharacterClasses() ([]CharacterClass, error)
	DeleteCharacterClass(classname string) error

	// Breakage types
	CreateBreakageType(bt *BreakageType) error
	ListBreakageTypes() ([]BreakageType, error)

	// Users and groupings
	GetOrCreateUser(username string) (User, error)
	CreateGrouping(grouping *CharacterGrouping, characterIDs []string) error
	GetGrouping(id string) (CharacterGrouping, error)
	ListGroupings(limit, offset int) ([]CharacterGrouping, int64, error)
	DeleteGrouping(id string) error
	AddCharactersToGrouping(groupingID string, characterIDs []string) error
	RemoveCharactersFromGrouping(groupingID string, characterIDs []string) error
}

// BookFilter narrows book listings.
type BookFilter struct {
	Title     string // substring match on either title variant
	Author    string // substring match on either author variant
	Printer   string // substring match on pp_printer or colloq_printer
	YearEarly *uint  // books whose range ends at or after this year
	YearLate  *uint  // books whose range starts at or before this year
	Starred   *bool
	Ignored   *bool // nil hides ignored books, like search results do
	EEBO      *bool
	Limit     int
	Offset    int
}

// PageFilter narrows page listings.
type PageFilter struct {
	RunID  string
	BookID string // pages of any run belonging to the book
	Side   string
	Limit  int
	Offset int
}

// LineFilter narrows line listings.
type LineFilter struct {
	RunID  string
	PageID string
	Limit  int
	Offset int
}

// CharacterFilter narrows character listings.
type CharacterFilter struct {
	RunID          string
	LineID         string
	Class          string // machine-assigned class
	HumanClass     string // curator-assigned class
	MinProbability *float64
	MinDamage      *float64
	MaxDamage      *float64
	Limit          int
	Offset         int
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB

	metrics *metrics.DatastoreMetrics
}

// SetMetrics attaches query metrics to the store. Call before Open so the
// connection's logger picks them up.
func (ds *DataStore) SetMetrics(m *metrics.DatastoreMetrics) {
	ds.metrics = m
}

// TableCounts returns the number of rows in each entity table.
func (ds *DataStore) TableCounts() (map[string]int64, error) {
	models := map[string]any{
		"books":               &Book{},
		"spreads":             &Spread{},
		"page_runs":           &PageRun{},
		"line_runs":           &LineRun{},
		"character_runs":      &CharacterRun{},
		"pages":               &Page{},
		"lines":               &Line{},
		"characters":          &Character{},
		"character_classes":   &CharacterClass{},
		"breakage_types":      &BreakageType{},
		"users":               &User{},
		"character_groupings": &CharacterGrouping{},
	}

	counts := make(map[string]int64, len(models))
	for table, model := range models {
		var n int64
		if err := ds.DB.Model(model).Count(&n).Error; err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryDatabase).
				Context("table", table).
				Build()
		}
		counts[table] = n
	}
	return counts, nil
}

// New creates a store for whichever database backend the settings enable.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// limitClause applies pagination with a sane default and cap.
func limitClause(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// notFoundOr wraps a GORM error, mapping ErrRecordNotFound onto the
// not-found category so the API layer can return 404.
func notFoundOr(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Newf("%s %q not found", what, id).
			Category(errors.CategoryNotFound).
			Context("id", id).
			Build()
	}
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("id", id).
		Build()
}

// exists reports whether a row of the given model with this ID is present.
func exists[T any](tx *gorm.DB, id string) (bool, error) {
	var count int64
	var model T
	if err := tx.Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// requireParent fails with a validation error when a referenced parent row
// does not exist. Foreign keys to missing parents are rejected before any
// entity is created.
func requireParent[T any](tx *gorm.DB, what, id string) error {
	if id == "" {
		return errors.Newf("%s reference must not be empty", what).
			Category(errors.CategoryValidation).
			Build()
	}
	ok, err := exists[T](tx, id)
	if err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if !ok {
		return errors.Newf("%s %q does not exist", what, id).
			Category(errors.CategoryValidation).
			Context("id", id).
			Build()
	}
	return nil
}

