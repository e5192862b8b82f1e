// runs.go: lifecycle of pipeline runs.
//
// Runs are immutable once created: there is no update operation and no
// explicit closed state. Runs for a book are totally ordered by creation
// time, and the "most recent" run of a stage is the first element of the
// reverse-chronological ordering, regardless of how complete the run is.
// Deleting a run cascades to every entity it produced.
package datastore

import (
	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/errors"
)

// CreatePageRun records a new execution of the page segmentation stage.
func (ds *DataStore) CreatePageRun(run *PageRun) error {
	if err := requireParent[Book](ds.DB, "book", run.BookID); err != nil {
		return err
	}
	if err := ds.DB.Create(run).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_page_run").Build()
	}
	return nil
}

// GetPageRun retrieves a page run by ID.
func (ds *DataStore) GetPageRun(id string) (PageRun, error) {
	var run PageRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return PageRun{}, notFoundOr(err, "page run", id)
	}
	return run, nil
}

// ListPageRuns retrieves a book's page runs, newest first.
func (ds *DataStore) ListPageRuns(bookID string, limit, offset int) ([]PageRun, int64, error) {
	q := ds.DB.Model(&PageRun{})
	if bookID != "" {
		q = q.Where("book_id = ?", bookID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var runs []PageRun
	if err := limitClause(q.Order("created_at DESC"), limit, offset).Find(&runs).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return runs, total, nil
}

// MostRecentPageRun resolves the newest page run for a book.
func (ds *DataStore) MostRecentPageRun(bookID string) (PageRun, error) {
	var run PageRun
	err := ds.DB.Where("book_id = ?", bookID).Order("created_at DESC").First(&run).Error
	if err != nil {
		return PageRun{}, notFoundOr(err, "page run for book", bookID)
	}
	return run, nil
}

// DeletePageRun removes a page run and every page, line and character that
// descends from it.
func (ds *DataStore) DeletePageRun(id string) error {
	var run PageRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "page run", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		pageIDs := tx.Model(&Page{}).Select("id").Where("created_by_run_id = ?", id)
		lineIDs := tx.Model(&Line{}).Select("id").Where("page_id IN (?)", pageIDs)
		if err := deleteCharactersOfLines(tx, lineIDs); err != nil {
			return err
		}
		if err := tx.Where("page_id IN (?)", pageIDs).Delete(&Line{}).Error; err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id = ?", id).Delete(&Page{}).Error; err != nil {
			return err
		}
		return tx.Delete(&PageRun{}, "id = ?", id).Error
	})
}

// PageRunComponentCount counts the pages a run produced.
func (ds *DataStore) PageRunComponentCount(id string) (int64, error) {
	var count int64
	err := ds.DB.Model(&Page{}).Where("created_by_run_id = ?", id).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return count, nil
}

// CreateLineRun records a new execution of the line segmentation stage.
func (ds *DataStore) CreateLineRun(run *LineRun) error {
	if err := requireParent[Book](ds.DB, "book", run.BookID); err != nil {
		return err
	}
	if err := ds.DB.Create(run).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_line_run").Build()
	}
	return nil
}

// GetLineRun retrieves a line run by ID.
func (ds *DataStore) GetLineRun(id string) (LineRun, error) {
	var run LineRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return LineRun{}, notFoundOr(err, "line run", id)
	}
	return run, nil
}

// ListLineRuns retrieves a book's line runs, newest first.
func (ds *DataStore) ListLineRuns(bookID string, limit, offset int) ([]LineRun, int64, error) {
	q := ds.DB.Model(&LineRun{})
	if bookID != "" {
		q = q.Where("book_id = ?", bookID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var runs []LineRun
	if err := limitClause(q.Order("created_at DESC"), limit, offset).Find(&runs).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return runs, total, nil
}

// MostRecentLineRun resolves the newest line run for a book.
func (ds *DataStore) MostRecentLineRun(bookID string) (LineRun, error) {
	var run LineRun
	err := ds.DB.Where("book_id = ?", bookID).Order("created_at DESC").First(&run).Error
	if err != nil {
		return LineRun{}, notFoundOr(err, "line run for book", bookID)
	}
	return run, nil
}

// DeleteLineRun removes a line run, its lines, and their characters.
func (ds *DataStore) DeleteLineRun(id string) error {
	var run LineRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "line run", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		lineIDs := tx.Model(&Line{}).Select("id").Where("created_by_run_id = ?", id)
		if err := deleteCharactersOfLines(tx, lineIDs); err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id = ?", id).Delete(&Line{}).Error; err != nil {
			return err
		}
		return tx.Delete(&LineRun{}, "id = ?", id).Error
	})
}

// LineRunComponentCount counts the lines a run produced.
func (ds *DataStore) LineRunComponentCount(id string) (int64, error) {
	var count int64
	err := ds.DB.Model(&Line{}).Where("created_by_run_id = ?", id).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return count, nil
}

// CreateCharacterRun records a new execution of the character segmentation stage.
func (ds *DataStore) CreateCharacterRun(run *CharacterRun) error {
	if err := requireParent[Book](ds.DB, "book", run.BookID); err != nil {
		return err
	}
	if err := ds.DB.Create(run).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_character_run").Build()
	}
	return nil
}

// GetCharacterRun retrieves a character run by ID.
func (ds *DataStore) GetCharacterRun(id string) (CharacterRun, error) {
	var run CharacterRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return CharacterRun{}, notFoundOr(err, "character run", id)
	}
	return run, nil
}

// ListCharacterRuns retrieves a book's character runs, newest first.
func (ds *DataStore) ListCharacterRuns(bookID string, limit, offset int) ([]CharacterRun, int64, error) {
	q := ds.DB.Model(&CharacterRun{})
	if bookID != "" {
		q = q.Where("book_id = ?", bookID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var runs []CharacterRun
	if err := limitClause(q.Order("created_at DESC"), limit, offset).Find(&runs).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return runs, total, nil
}

// MostRecentCharacterRun resolves the newest character run for a book.
func (ds *DataStore) MostRecentCharacterRun(bookID string) (CharacterRun, error) {
	var run CharacterRun
	err := ds.DB.Where("book_id = ?", bookID).Order("created_at DESC").First(&run).Error
	if err != nil {
		return CharacterRun{}, notFoundOr(err, "character run for book", bookID)
	}
	return run, nil
}

// DeleteCharacterRun removes a character run and its characters.
func (ds *DataStore) DeleteCharacterRun(id string) error {
	var run CharacterRun
	if err := ds.DB.First(&run, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "character run", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		charIDs := tx.Model(&Character{}).Select("id").Where("created_by_run_id = ?", id)
		if err := deleteCharacterRelations(tx, charIDs); err != nil {
			return err
		}
		if err := tx.Where("created_by_run_id = ?", id).Delete(&Character{}).Error; err != nil {
			return err
		}
		return tx.Delete(&CharacterRun{}, "id = ?", id).Error
	})
}

// CharacterRunComponentCount counts the characters a run produced.
func (ds *DataStore) CharacterRunComponentCount(id string) (int64, error) {
	var count int64
	err := ds.DB.Model(&Character{}).Where("created_by_run_id = ?", id).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return count, nil
}

// deleteCharacterRelations clears grouping and breakage join rows for the
// characters selected by the subquery. Join rows have no cascade of their
// own, so every character deletion path goes through here first.
func deleteCharacterRelations(tx *gorm.DB, charIDs *gorm.DB) error {
	if err := tx.Exec("DELETE FROM grouping_characters WHERE character_id IN (?)", charIDs).Error; err != nil {
		return err
	}
	return tx.Exec("DELETE FROM character_breakage_types WHERE character_id IN (?)", charIDs).Error
}

// deleteCharactersOfLines removes all characters sitting on the lines
// selected by the subquery, join rows included.
func deleteCharactersOfLines(tx *gorm.DB, lineIDs *gorm.DB) error {
	charIDs := tx.Model(&Character{}).Select("id").Where("line_id IN (?)", lineIDs)
	if err := deleteCharacterRelations(tx, charIDs); err != nil {
		return err
	}
	return tx.Where("line_id IN (?)", lineIDs).Delete(&Character{}).Error
}
