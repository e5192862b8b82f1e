// books.go: book CRUD, including the EEBO field immutability rule and the
// eagerly maintained spread count.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/errors"
)

// Default print-date range assumed when the caller supplies none.
var (
	defaultDateEarly = time.Date(1550, time.January, 1, 0, 0, 0, 0, time.UTC)
	defaultDateLate  = time.Date(1800, time.December, 12, 0, 0, 0, 0, time.UTC)
)

// CreateBook inserts a new book. The label and UUID are assigned in the
// model's save hooks.
func (ds *DataStore) CreateBook(book *Book) error {
	if book.PQTitle == "" {
		return errors.Newf("pq_title is required").
			Category(errors.CategoryValidation).
			Build()
	}
	if book.DateEarly.IsZero() {
		book.DateEarly = defaultDateEarly
	}
	if book.DateLate.IsZero() {
		book.DateLate = defaultDateLate
	}
	if err := ds.DB.Create(book).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_book").Build()
	}
	return nil
}

// GetBook retrieves a book by ID.
func (ds *DataStore) GetBook(id string) (Book, error) {
	var book Book
	if err := ds.DB.First(&book, "id = ?", id).Error; err != nil {
		return Book{}, notFoundOr(err, "book", id)
	}
	return book, nil
}

// ListBooks retrieves books matching the filter, ordered by title, along with
// the total number of matches.
func (ds *DataStore) ListBooks(filter BookFilter) ([]Book, int64, error) {
	q := ds.DB.Model(&Book{})

	if filter.Title != "" {
		q = q.Where("pq_title LIKE ?", "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		q = q.Where("pq_author LIKE ? OR pp_author LIKE ?", "%"+filter.Author+"%", "%"+filter.Author+"%")
	}
	if filter.Printer != "" {
		q = q.Where("pp_printer LIKE ? OR colloq_printer LIKE ?", "%"+filter.Printer+"%", "%"+filter.Printer+"%")
	}
	if filter.YearEarly != nil {
		q = q.Where("pq_year_late >= ?", *filter.YearEarly)
	}
	if filter.YearLate != nil {
		q = q.Where("pq_year_early <= ?", *filter.YearLate)
	}
	if filter.Starred != nil {
		q = q.Where("starred = ?", *filter.Starred)
	}
	if filter.Ignored != nil {
		q = q.Where("ignored = ?", *filter.Ignored)
	} else {
		// Ignored books stay out of listings unless asked for explicitly.
		q = q.Where("ignored = ?", false)
	}
	if filter.EEBO != nil {
		q = q.Where("is_eebo_book = ?", *filter.EEBO)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}

	var books []Book
	err := limitClause(q.Order("pq_title"), filter.Limit, filter.Offset).Find(&books).Error
	if err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return books, total, nil
}

// UpdateBook saves changed fields of a book. Once a book is flagged as an
// EEBO book its catalog-sourced fields are frozen; attempts to change them
// are rejected here rather than at the HTTP boundary.
func (ds *DataStore) UpdateBook(book *Book) error {
	var existing Book
	if err := ds.DB.First(&existing, "id = ?", book.ID).Error; err != nil {
		return notFoundOr(err, "book", book.ID)
	}

	if existing.IsEEBOBook {
		if field := changedEEBOField(&existing, book); field != "" {
			return errors.Newf("field %q cannot be modified on an EEBO book", field).
				Category(errors.CategoryImmutable).
				Context("book_id", book.ID).
				Context("field", field).
				Build()
		}
	}

	// Save runs the BeforeSave hook, so the label tracks field changes.
	if err := ds.DB.Save(book).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("book_id", book.ID).Build()
	}
	return nil
}

// changedEEBOField returns the name of the first frozen field that differs
// between the stored and submitted book, or "" when none do.
func changedEEBOField(existing, submitted *Book) string {
	switch {
	case !uintPtrEqual(existing.EEBO, submitted.EEBO):
		return "eebo"
	case !uintPtrEqual(existing.VID, submitted.VID):
		return "vid"
	case existing.TCP != submitted.TCP:
		return "tcp"
	case existing.ESTC != submitted.ESTC:
		return "estc"
	case existing.Zipfile != submitted.Zipfile:
		return "zipfile"
	case existing.PQURL != submitted.PQURL:
		return "pq_url"
	case existing.PQYearVerbatim != submitted.PQYearVerbatim:
		return "pq_year_verbatim"
	case !uintPtrEqual(existing.PQYearEarly, submitted.PQYearEarly):
		return "pq_year_early"
	case !uintPtrEqual(existing.PQYearLate, submitted.PQYearLate):
		return "pq_year_late"
	case !uintPtrEqual(existing.TXYearEarly, submitted.TXYearEarly):
		return "tx_year_early"
	case !uintPtrEqual(existing.TXYearLate, submitted.TXYearLate):
		return "tx_year_late"
	}
	return ""
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DeleteBook removes a book and cascades to every spread, run and
// segmentation entity that belongs to it.
func (ds *DataStore) DeleteBook(id string) error {
	var book Book
	if err := ds.DB.First(&book, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "book", id)
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		// Characters (and their join rows) hang off character runs of the book.
		charIDs := tx.Model(&Character{}).Select("id").
			Where("created_by_run_id IN (?)", tx.Model(&CharacterRun{}).Select("id").Where("book_id = ?", id))
		if err := deleteCharacterRelations(tx, charIDs); err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id IN (?)",
			tx.Model(&CharacterRun{}).Select("id").Where("book_id = ?", id)).Delete(&Character{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id IN (?)",
			tx.Model(&LineRun{}).Select("id").Where("book_id = ?", id)).Delete(&Line{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id IN (?)",
			tx.Model(&PageRun{}).Select("id").Where("book_id = ?", id)).Delete(&Page{}).Error; err != nil {
			return err
		}
		for _, model := range []any{&CharacterRun{}, &LineRun{}, &PageRun{}, &Spread{}} {
			if err := tx.Where("book_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Book{}, "id = ?", id).Error
	})
}

// refreshSpreadCount recomputes and persists a book's spread count inside the
// caller's transaction. Derived aggregate, kept eagerly consistent.
func refreshSpreadCount(tx *gorm.DB, bookID string) error {
	var count int64
	if err := tx.Model(&Spread{}).Where("book_id = ?", bookID).Count(&count).Error; err != nil {
		return err
	}
	return tx.Model(&Book{}).Where("id = ?", bookID).Update("n_spreads", count).Error
}
