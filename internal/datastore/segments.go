// segments.go: spread, page, line and character operations.
//
// Each create is one transaction; there is no batch atomicity across a run's
// entities, so a crash mid-batch leaves a partially-populated run, which is a
// valid queryable state. Foreign keys are validated before insert so a single
// entity is never partially applied.
package datastore

import (
	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/errors"
)

// CreateSpread inserts a spread and refreshes the owning book's spread count
// in the same transaction.
func (ds *DataStore) CreateSpread(spread *Spread) error {
	if err := requireParent[Book](ds.DB, "book", spread.BookID); err != nil {
		return err
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(spread).Error; err != nil {
			return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_spread").Build()
		}
		return refreshSpreadCount(tx, spread.BookID)
	})
}

// GetSpread retrieves a spread by ID.
func (ds *DataStore) GetSpread(id string) (Spread, error) {
	var spread Spread
	if err := ds.DB.First(&spread, "id = ?", id).Error; err != nil {
		return Spread{}, notFoundOr(err, "spread", id)
	}
	return spread, nil
}

// ListSpreads retrieves spreads ordered by book and sequence.
func (ds *DataStore) ListSpreads(bookID string, limit, offset int) ([]Spread, int64, error) {
	q := ds.DB.Model(&Spread{})
	if bookID != "" {
		q = q.Where("book_id = ?", bookID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var spreads []Spread
	if err := limitClause(q.Order("book_id, sequence"), limit, offset).Find(&spreads).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return spreads, total, nil
}

// UpdateSpread saves a spread and refreshes the book's spread count.
func (ds *DataStore) UpdateSpread(spread *Spread) error {
	var existing Spread
	if err := ds.DB.First(&existing, "id = ?", spread.ID).Error; err != nil {
		return notFoundOr(err, "spread", spread.ID)
	}
	if spread.BookID != existing.BookID {
		return errors.Newf("spread %q cannot move to another book", spread.ID).
			Category(errors.CategoryValidation).
			Build()
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(spread).Error; err != nil {
			return errors.New(err).Category(errors.CategoryDatabase).Build()
		}
		return refreshSpreadCount(tx, spread.BookID)
	})
}

// DeleteSpread removes a spread and refreshes the book's spread count.
func (ds *DataStore) DeleteSpread(id string) error {
	var spread Spread
	if err := ds.DB.First(&spread, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "spread", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Spread{}, "id = ?", id).Error; err != nil {
			return err
		}
		return refreshSpreadCount(tx, spread.BookID)
	})
}

// CreatePage inserts a page produced by a page run. The (run, sequence,
// side) combination must be unique; this is checked here rather than by a
// storage constraint.
func (ds *DataStore) CreatePage(page *Page) error {
	if err := requireParent[PageRun](ds.DB, "page run", page.CreatedByRunID); err != nil {
		return err
	}
	if page.Side != SideSingle && page.Side != SideLeft && page.Side != SideRight {
		return errors.Newf("side must be one of s, l, r, got %q", page.Side).
			Category(errors.CategoryValidation).
			Build()
	}
	var dupes int64
	err := ds.DB.Model(&Page{}).
		Where("created_by_run_id = ? AND sequence = ? AND side = ?", page.CreatedByRunID, page.Sequence, page.Side).
		Count(&dupes).Error
	if err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if dupes > 0 {
		return errors.Newf("page with sequence %d side %q already exists for this run", page.Sequence, page.Side).
			Category(errors.CategoryConflict).
			Build()
	}
	if err := ds.DB.Create(page).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_page").Build()
	}
	return nil
}

// GetPage retrieves a page by ID.
func (ds *DataStore) GetPage(id string) (Page, error) {
	var page Page
	if err := ds.DB.First(&page, "id = ?", id).Error; err != nil {
		return Page{}, notFoundOr(err, "page", id)
	}
	return page, nil
}

// ListPages retrieves pages ordered by run and sequence.
func (ds *DataStore) ListPages(filter PageFilter) ([]Page, int64, error) {
	q := ds.DB.Model(&Page{})
	if filter.RunID != "" {
		q = q.Where("created_by_run_id = ?", filter.RunID)
	}
	if filter.BookID != "" {
		q = q.Where("created_by_run_id IN (?)",
			ds.DB.Model(&PageRun{}).Select("id").Where("book_id = ?", filter.BookID))
	}
	if filter.Side != "" {
		q = q.Where("side = ?", filter.Side)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var pages []Page
	if err := limitClause(q.Order("created_by_run_id, sequence"), filter.Limit, filter.Offset).Find(&pages).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return pages, total, nil
}

// DeletePage removes a page and the lines and characters beneath it.
func (ds *DataStore) DeletePage(id string) error {
	var page Page
	if err := ds.DB.First(&page, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "page", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		lineIDs := tx.Model(&Line{}).Select("id").Where("page_id = ?", id)
		if err := deleteCharactersOfLines(tx, lineIDs); err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", id).Delete(&Line{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Page{}, "id = ?", id).Error
	})
}

// MostRecentPages returns the pages of the book's newest page run, in
// sequence order.
func (ds *DataStore) MostRecentPages(bookID string) ([]Page, error) {
	run, err := ds.MostRecentPageRun(bookID)
	if err != nil {
		return nil, err
	}
	var pages []Page
	err = ds.DB.Where("created_by_run_id = ?", run.ID).Order("sequence").Find(&pages).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return pages, nil
}

// CreateLine inserts a line produced by a line run.
func (ds *DataStore) CreateLine(line *Line) error {
	if err := requireParent[LineRun](ds.DB, "line run", line.CreatedByRunID); err != nil {
		return err
	}
	if err := requireParent[Page](ds.DB, "page", line.PageID); err != nil {
		return err
	}
	if line.YMax < line.YMin {
		return errors.Newf("y_max %d is above y_min %d", line.YMax, line.YMin).
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ds.DB.Create(line).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_line").Build()
	}
	return nil
}

// GetLine retrieves a line by ID.
func (ds *DataStore) GetLine(id string) (Line, error) {
	var line Line
	if err := ds.DB.First(&line, "id = ?", id).Error; err != nil {
		return Line{}, notFoundOr(err, "line", id)
	}
	return line, nil
}

// ListLines retrieves lines ordered by run, page and sequence.
func (ds *DataStore) ListLines(filter LineFilter) ([]Line, int64, error) {
	q := ds.DB.Model(&Line{})
	if filter.RunID != "" {
		q = q.Where("created_by_run_id = ?", filter.RunID)
	}
	if filter.PageID != "" {
		q = q.Where("page_id = ?", filter.PageID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var lines []Line
	if err := limitClause(q.Order("created_by_run_id, page_id, sequence"), filter.Limit, filter.Offset).Find(&lines).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return lines, total, nil
}

// DeleteLine removes a line and its characters.
func (ds *DataStore) DeleteLine(id string) error {
	var line Line
	if err := ds.DB.First(&line, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "line", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		charIDs := tx.Model(&Character{}).Select("id").Where("line_id = ?", id)
		if err := deleteCharacterRelations(tx, charIDs); err != nil {
			return err
		}
		if err := tx.Where("line_id = ?", id).Delete(&Character{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Line{}, "id = ?", id).Error
	})
}

// CreateCharacter inserts a character produced by a character run.
func (ds *DataStore) CreateCharacter(character *Character) error {
	if err := requireParent[CharacterRun](ds.DB, "character run", character.CreatedByRunID); err != nil {
		return err
	}
	if err := requireParent[Line](ds.DB, "line", character.LineID); err != nil {
		return err
	}
	if character.CharacterClassID == "" {
		return errors.Newf("character_class is required").
			Category(errors.CategoryValidation).
			Build()
	}
	var class CharacterClass
	if err := ds.DB.First(&class, "classname = ?", character.CharacterClassID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Newf("character class %q does not exist", character.CharacterClassID).
				Category(errors.CategoryValidation).
				Build()
		}
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if err := ds.DB.Create(character).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Context("operation", "create_character").Build()
	}
	return nil
}

// GetCharacter retrieves a character by ID, breakage types included.
func (ds *DataStore) GetCharacter(id string) (Character, error) {
	var character Character
	err := ds.DB.Preload("BreakageTypes").First(&character, "id = ?", id).Error
	if err != nil {
		return Character{}, notFoundOr(err, "character", id)
	}
	return character, nil
}

// ListCharacters retrieves characters ordered by run and line.
func (ds *DataStore) ListCharacters(filter CharacterFilter) ([]Character, int64, error) {
	q := ds.DB.Model(&Character{})
	if filter.RunID != "" {
		q = q.Where("created_by_run_id = ?", filter.RunID)
	}
	if filter.LineID != "" {
		q = q.Where("line_id = ?", filter.LineID)
	}
	if filter.Class != "" {
		q = q.Where("character_class_id = ?", filter.Class)
	}
	if filter.HumanClass != "" {
		q = q.Where("human_character_class_id = ?", filter.HumanClass)
	}
	if filter.MinProbability != nil {
		q = q.Where("class_probability >= ?", *filter.MinProbability)
	}
	if filter.MinDamage != nil {
		q = q.Where("damage_score >= ?", *filter.MinDamage)
	}
	if filter.MaxDamage != nil {
		q = q.Where("damage_score <= ?", *filter.MaxDamage)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var characters []Character
	if err := limitClause(q.Order("created_by_run_id, line_id, sequence"), filter.Limit, filter.Offset).Find(&characters).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return characters, total, nil
}

// DeleteCharacter removes a character and its join rows.
func (ds *DataStore) DeleteCharacter(id string) error {
	var character Character
	if err := ds.DB.First(&character, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "character", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		charIDs := tx.Model(&Character{}).Select("id").Where("id = ?", id)
		if err := deleteCharacterRelations(tx, charIDs); err != nil {
			return err
		}
		return tx.Delete(&Character{}, "id = ?", id).Error
	})
}
