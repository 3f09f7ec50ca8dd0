package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

func TestSpanner(t *testing.T) {
	s, err := NewSpanner(types.PatternSet{
		{ID: 0, Pattern: "é+", Flags: types.DefaultFlags},
		{ID: 4, Pattern: "abc", Flags: types.DefaultFlags | types.FlagCaseless},
	})
	require.NoError(t, err)

	// Byte offsets, not rune offsets
	assert.Equal(t, []Span{{Start: 2, End: 6}}, s.Spans(0, []byte("x ééy")))
	assert.Equal(t, []Span{{0, 3}, {4, 7}}, s.Spans(4, []byte("ABC abc")))
	assert.Nil(t, s.Spans(9, []byte("abc")))
	assert.Nil(t, s.Spans(4, nil))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)
	assert.Equal(t, "text", f.String())

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestColorEnabled(t *testing.T) {
	on, err := ColorEnabled("always", nil)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = ColorEnabled("never", nil)
	require.NoError(t, err)
	assert.False(t, on)

	t.Setenv("NO_COLOR", "1")
	on, err = ColorEnabled("auto", nil)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = ColorEnabled("sometimes", nil)
	assert.Error(t, err)
}
