package classroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	assert.Empty(t, EncodeCursor("assignment", ""))

	token, err := DecodeCursor("assignment", "")
	require.NoError(t, err)
	assert.Empty(t, token)

	c := EncodeCursor("assignment", "page-2")
	token, err = DecodeCursor("assignment", c)
	require.NoError(t, err)
	assert.Equal(t, "page-2", token)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for name, s := range map[string]string{
		"not base64":    "%%%",
		"not json":      "bm90IGpzb24",
		"wrong listing": EncodeCursor("announcement", "page-2"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor("assignment", s)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}
