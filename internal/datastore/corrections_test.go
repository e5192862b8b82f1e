package datastore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterClassValidation(t *testing.T) {
	ds := setupTestDB(t)

	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "A", Label: "A", Group: GroupUppercase}))

	// Duplicates conflict, unknown groups are rejected, empty group defaults.
	assert.Error(t, ds.CreateCharacterClass(&CharacterClass{Classname: "A", Group: GroupUppercase}))
	assert.Error(t, ds.CreateCharacterClass(&CharacterClass{Classname: "b", Group: "xx"}))

	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "b"}))
	got, err := ds.GetCharacterClass("b")
	require.NoError(t, err)
	assert.Equal(t, GroupLowercase, got.Group)
}

func TestDeleteCharacterClassProtectedWhileReferenced(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)
	createTestCharacter(t, ds, charRun, line, 0)

	err := ds.DeleteCharacterClass("a")
	assert.Error(t, err)

	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "q", Group: GroupLowercase}))
	assert.NoError(t, ds.DeleteCharacterClass("q"))
}

func TestAnnotateCharacters(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)
	c1 := createTestCharacter(t, ds, charRun, line, 0)
	c2 := createTestCharacter(t, ds, charRun, line, 1)
	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "e", Group: GroupLowercase}))

	require.NoError(t, ds.AnnotateCharacters([]string{c1.ID, c2.ID}, "e"))

	for _, id := range []string{c1.ID, c2.ID} {
		got, err := ds.GetCharacter(id)
		require.NoError(t, err)
		require.NotNil(t, got.HumanCharacterClassID)
		assert.Equal(t, "e", *got.HumanCharacterClassID)
		// The machine assignment survives.
		assert.Equal(t, "a", got.CharacterClassID)
	}
}

func TestAnnotateCharactersIsAtomic(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)
	c1 := createTestCharacter(t, ds, charRun, line, 0)
	require.NoError(t, ds.CreateCharacterClass(&CharacterClass{Classname: "e", Group: GroupLowercase}))

	// One bad ID aborts the whole batch.
	err := ds.AnnotateCharacters([]string{c1.ID, "no-such-character"}, "e")
	require.Error(t, err)

	got, err := ds.GetCharacter(c1.ID)
	require.NoError(t, err)
	assert.Nil(t, got.HumanCharacterClassID)

	// So does a missing target class.
	assert.Error(t, ds.AnnotateCharacters([]string{c1.ID}, "no-such-class"))
	assert.Error(t, ds.AnnotateCharacters(nil, "e"))
}

func TestGroupingLifecycle(t *testing.T) {
	ds := setupTestDB(t)
	_, _, _, charRun, _, line := buildHierarchy(t, ds)
	c1 := createTestCharacter(t, ds, charRun, line, 0)
	c2 := createTestCharacter(t, ds, charRun, line, 1)

	user, err := ds.GetOrCreateUser("curator")
	require.NoError(t, err)

	grouping := &CharacterGrouping{Label: "damaged r ligatures", Notes: "candidates", CreatedByID: user.ID}
	require.NoError(t, ds.CreateGrouping(grouping, []string{c1.ID}))

	// Labels are unique across groupings.
	assert.Error(t, ds.CreateGrouping(&CharacterGrouping{Label: "damaged r ligatures", CreatedByID: user.ID}, nil))

	got, err := ds.GetGrouping(grouping.ID)
	require.NoError(t, err)
	require.Len(t, got.Characters, 1)

	// Adding is idempotent per member.
	require.NoError(t, ds.AddCharactersToGrouping(grouping.ID, []string{c1.ID, c2.ID}))
	require.NoError(t, ds.AddCharactersToGrouping(grouping.ID, []string{c2.ID}))
	got, err = ds.GetGrouping(grouping.ID)
	require.NoError(t, err)
	assert.Len(t, got.Characters, 2)

	// An unresolvable member aborts the batch.
	err = ds.AddCharactersToGrouping(grouping.ID, []string{"no-such-character"})
	assert.Error(t, err)

	// Removing an absent member is a no-op.
	require.NoError(t, ds.RemoveCharactersFromGrouping(grouping.ID, []string{c1.ID}))
	require.NoError(t, ds.RemoveCharactersFromGrouping(grouping.ID, []string{c1.ID}))
	got, err = ds.GetGrouping(grouping.ID)
	require.NoError(t, err)
	assert.Len(t, got.Characters, 1)

	// Deleting the grouping leaves its members in place.
	require.NoError(t, ds.DeleteGrouping(grouping.ID))
	_, err = ds.GetGrouping(grouping.ID)
	assert.Error(t, err)
	_, err = ds.GetCharacter(c2.ID)
	assert.NoError(t, err)
}

func TestListGroupings(t *testing.T) {
	ds := setupTestDB(t)
	user, err := ds.GetOrCreateUser("curator")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		g := &CharacterGrouping{Label: fmt.Sprintf("grouping %d", i), CreatedByID: user.ID}
		require.NoError(t, ds.CreateGrouping(g, nil))
	}

	groupings, total, err := ds.ListGroupings(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, groupings, 2)
}

func TestGetOrCreateUserIsStable(t *testing.T) {
	ds := setupTestDB(t)

	first, err := ds.GetOrCreateUser("wiedner")
	require.NoError(t, err)
	second, err := ds.GetOrCreateUser("wiedner")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = ds.GetOrCreateUser("")
	assert.Error(t, err)
}

func TestBreakageTypes(t *testing.T) {
	ds := setupTestDB(t)

	require.NoError(t, ds.CreateBreakageType(&BreakageType{Label: "broken ascender"}))
	require.NoError(t, ds.CreateBreakageType(&BreakageType{Label: "ink blot"}))
	assert.Error(t, ds.CreateBreakageType(&BreakageType{}))

	types, err := ds.ListBreakageTypes()
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "broken ascender", types[0].Label)
}
