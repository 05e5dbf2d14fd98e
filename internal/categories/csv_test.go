package categories

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkcents/talkcents/internal/model"
)

func TestCSVRoundTrip(t *testing.T) {
	cats := []model.Category{
		{Name: "Food & Drinks", Icon: "🍔"},
		{Name: "Rent, utilities", Icon: ""},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCategories(&buf, cats))
	assert.True(t, strings.HasPrefix(buf.String(), "name,icon\n"))

	got, err := ReadCategories(&buf)
	require.NoError(t, err)
	assert.Equal(t, cats, got)
}

func TestReadCategories_Empty(t *testing.T) {
	got, err := ReadCategories(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ReadCategories(strings.NewReader("name,icon\n"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadCategories_BlankName(t *testing.T) {
	_, err := ReadCategories(strings.NewReader("name,icon\n,🍔\n"))
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.ErrorContains(t, err, "row 2")
}
