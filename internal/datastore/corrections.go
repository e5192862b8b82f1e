// corrections.go: the human correction overlay.
//
// Curators never mutate machine output: the classifier's class assignment is
// untouched by annotation, and groupings are an orthogonal tagging layer on
// top of the run hierarchy. Batch operations are atomic: one unresolvable ID
// aborts the whole batch.
package datastore

import (
	"gorm.io/gorm"

	"github.com/printprob/bookdb/internal/errors"
)

// CreateCharacterClass inserts a new class into the shared taxonomy.
func (ds *DataStore) CreateCharacterClass(class *CharacterClass) error {
	if class.Classname == "" {
		return errors.Newf("classname is required").
			Category(errors.CategoryValidation).
			Build()
	}
	switch class.Group {
	case GroupLowercase, GroupUppercase, GroupNumber, GroupPunctuation:
	case "":
		class.Group = GroupLowercase
	default:
		return errors.Newf("group must be one of cl, cu, nu, pu, got %q", class.Group).
			Category(errors.CategoryValidation).
			Build()
	}
	var count int64
	if err := ds.DB.Model(&CharacterClass{}).Where("classname = ?", class.Classname).Count(&count).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if count > 0 {
		return errors.Newf("character class %q already exists", class.Classname).
			Category(errors.CategoryConflict).
			Build()
	}
	if err := ds.DB.Create(class).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return nil
}

// GetCharacterClass retrieves one class by its mnemonic code.
func (ds *DataStore) GetCharacterClass(classname string) (CharacterClass, error) {
	var class CharacterClass
	if err := ds.DB.First(&class, "classname = ?", classname).Error; err != nil {
		return CharacterClass{}, notFoundOr(err, "character class", classname)
	}
	return class, nil
}

// ListCharacterClasses retrieves the whole taxonomy, ordered by group then code.
func (ds *DataStore) ListCharacterClasses() ([]CharacterClass, error) {
	var classes []CharacterClass
	if err := ds.DB.Order("class_group, classname").Find(&classes).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return classes, nil
}

// DeleteCharacterClass removes a class. Classes still referenced by
// characters are protected.
func (ds *DataStore) DeleteCharacterClass(classname string) error {
	var class CharacterClass
	if err := ds.DB.First(&class, "classname = ?", classname).Error; err != nil {
		return notFoundOr(err, "character class", classname)
	}
	var refs int64
	err := ds.DB.Model(&Character{}).
		Where("character_class_id = ? OR human_character_class_id = ?", classname, classname).
		Count(&refs).Error
	if err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if refs > 0 {
		return errors.Newf("character class %q is assigned to %d characters", classname, refs).
			Category(errors.CategoryConflict).
			Build()
	}
	return ds.DB.Delete(&CharacterClass{}, "classname = ?", classname).Error
}

// AnnotateCharacters assigns a curator class to every listed character in one
// transaction. The machine-assigned class is left untouched. If any ID or
// the target class does not resolve, no character is updated.
func (ds *DataStore) AnnotateCharacters(ids []string, classname string) error {
	if len(ids) == 0 {
		return errors.Newf("no character IDs supplied").
			Category(errors.CategoryValidation).
			Build()
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var class CharacterClass
		if err := tx.First(&class, "classname = ?", classname).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Newf("character class %q does not exist", classname).
					Category(errors.CategoryValidation).
					Build()
			}
			return errors.New(err).Category(errors.CategoryDatabase).Build()
		}
		if err := resolveAllCharacters(tx, ids); err != nil {
			return err
		}
		return tx.Model(&Character{}).
			Where("id IN ?", ids).
			Update("human_character_class_id", classname).Error
	})
}

// resolveAllCharacters fails with a validation error naming the first missing
// ID when any of the given characters does not exist.
func resolveAllCharacters(tx *gorm.DB, ids []string) error {
	var found []string
	if err := tx.Model(&Character{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if len(found) == len(ids) {
		return nil
	}
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return errors.Newf("character %q does not exist", id).
				Category(errors.CategoryValidation).
				Context("character_id", id).
				Build()
		}
	}
	return nil
}

// CreateBreakageType adds a damage/breakage tag to the taxonomy.
func (ds *DataStore) CreateBreakageType(bt *BreakageType) error {
	if bt.Label == "" {
		return errors.Newf("label is required").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ds.DB.Create(bt).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return nil
}

// ListBreakageTypes retrieves all breakage tags.
func (ds *DataStore) ListBreakageTypes() ([]BreakageType, error) {
	var types []BreakageType
	if err := ds.DB.Order("label").Find(&types).Error; err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return types, nil
}

// GetOrCreateUser resolves a curator account by username, creating it on
// first sight.
func (ds *DataStore) GetOrCreateUser(username string) (User, error) {
	if username == "" {
		return User{}, errors.Newf("username is required").
			Category(errors.CategoryValidation).
			Build()
	}
	var user User
	err := ds.DB.Where(User{Username: username}).FirstOrCreate(&user).Error
	if err != nil {
		return User{}, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return user, nil
}

// CreateGrouping creates a grouping with an optional initial member set,
// atomically.
func (ds *DataStore) CreateGrouping(grouping *CharacterGrouping, characterIDs []string) error {
	if grouping.Label == "" {
		return errors.Newf("label is required").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := requireParent[User](ds.DB, "user", grouping.CreatedByID); err != nil {
		return err
	}
	var count int64
	if err := ds.DB.Model(&CharacterGrouping{}).Where("label = ?", grouping.Label).Count(&count).Error; err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if count > 0 {
		return errors.Newf("grouping with label %q already exists", grouping.Label).
			Category(errors.CategoryConflict).
			Build()
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if len(characterIDs) > 0 {
			if err := resolveAllCharacters(tx, characterIDs); err != nil {
				return err
			}
		}
		if err := tx.Create(grouping).Error; err != nil {
			return errors.New(err).Category(errors.CategoryDatabase).Build()
		}
		return appendGroupingMembers(tx, grouping.ID, characterIDs)
	})
}

// GetGrouping retrieves a grouping with its member characters.
func (ds *DataStore) GetGrouping(id string) (CharacterGrouping, error) {
	var grouping CharacterGrouping
	err := ds.DB.Preload("Characters").First(&grouping, "id = ?", id).Error
	if err != nil {
		return CharacterGrouping{}, notFoundOr(err, "grouping", id)
	}
	return grouping, nil
}

// ListGroupings retrieves groupings newest first.
func (ds *DataStore) ListGroupings(limit, offset int) ([]CharacterGrouping, int64, error) {
	var total int64
	if err := ds.DB.Model(&CharacterGrouping{}).Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	var groupings []CharacterGrouping
	err := limitClause(ds.DB.Order("created_at DESC"), limit, offset).Find(&groupings).Error
	if err != nil {
		return nil, 0, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return groupings, total, nil
}

// DeleteGrouping removes a grouping and its membership rows. Member
// characters are untouched.
func (ds *DataStore) DeleteGrouping(id string) error {
	var grouping CharacterGrouping
	if err := ds.DB.First(&grouping, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "grouping", id)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM grouping_characters WHERE character_grouping_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&CharacterGrouping{}, "id = ?", id).Error
	})
}

// AddCharactersToGrouping adds members to a grouping. Adding an
// already-present character is a no-op; an unresolvable ID aborts the batch.
func (ds *DataStore) AddCharactersToGrouping(groupingID string, characterIDs []string) error {
	var grouping CharacterGrouping
	if err := ds.DB.First(&grouping, "id = ?", groupingID).Error; err != nil {
		return notFoundOr(err, "grouping", groupingID)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := resolveAllCharacters(tx, characterIDs); err != nil {
			return err
		}
		return appendGroupingMembers(tx, groupingID, characterIDs)
	})
}

// RemoveCharactersFromGrouping drops members from a grouping. Removing an
// absent character is a no-op; an unresolvable ID aborts the batch.
func (ds *DataStore) RemoveCharactersFromGrouping(groupingID string, characterIDs []string) error {
	var grouping CharacterGrouping
	if err := ds.DB.First(&grouping, "id = ?", groupingID).Error; err != nil {
		return notFoundOr(err, "grouping", groupingID)
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := resolveAllCharacters(tx, characterIDs); err != nil {
			return err
		}
		return tx.Exec("DELETE FROM grouping_characters WHERE character_grouping_id = ? AND character_id IN ?",
			groupingID, characterIDs).Error
	})
}

// appendGroupingMembers inserts membership rows, skipping ones already
// present so repeated adds stay idempotent.
func appendGroupingMembers(tx *gorm.DB, groupingID string, characterIDs []string) error {
	for _, charID := range characterIDs {
		err := tx.Exec(
			"INSERT INTO grouping_characters (character_grouping_id, character_id) SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM grouping_characters WHERE character_grouping_id = ? AND character_id = ?)",
			groupingID, charID, groupingID, charID,
		).Error
		if err != nil {
			return errors.New(err).Category(errors.CategoryDatabase).Build()
		}
	}
	return nil
}
