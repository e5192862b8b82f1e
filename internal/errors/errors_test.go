package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.NotEmpty(t, ee.Component)
	assert.False(t, ee.Timestamp.IsZero())
	assert.Equal(t, "boom", ee.Error())
}

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("book %q not found", "abc").
		Category(CategoryNotFound).
		Component("datastore").
		Context("book_id", "abc").
		Build()

	assert.Equal(t, CategoryNotFound, ee.Category)
	assert.Equal(t, "datastore", ee.Component)
	assert.Equal(t, "abc", ee.GetContext()["book_id"])
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	notFound := Newf("gone").Category(CategoryNotFound).Build()
	otherNotFound := Newf("also gone").Category(CategoryNotFound).Build()
	conflict := Newf("dup").Category(CategoryConflict).Build()

	assert.True(t, Is(notFound, otherNotFound))
	assert.False(t, Is(notFound, conflict))
}

func TestUnwrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("root cause")
	wrapped := New(fmt.Errorf("saving book: %w", cause)).Category(CategoryDatabase).Build()

	assert.True(t, Is(wrapped, cause))

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryDatabase, Category(wrapped))
}

func TestCategoryOfPlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryGeneric, Category(fmt.Errorf("plain")))
}
