//go:build cgo && hyperscan

package matcher

import (
	"errors"
	"testing"

	"github.com/praetorian-inc/hypergrep/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileHyperscan(t *testing.T, set types.PatternSet) (Matcher, Scratch) {
	t.Helper()
	eng, err := New(EngineHyperscan)
	require.NoError(t, err)
	m, err := eng.Compile(set)
	require.NoError(t, err)
	s, err := m.AllocScratch()
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Free()
		m.Close()
	})
	return m, s
}

func TestHyperscan_SingleMatch(t *testing.T) {
	m, s := compileHyperscan(t, types.NewPatternSet(`foo`))

	hits := scanAll(t, m, s, "foo foo foo\n")

	require.Len(t, hits, 1)
	assert.Equal(t, uint(0), hits[0].ID)
	assert.Equal(t, uint64(3), hits[0].To)
}

func TestHyperscan_IDsPassedThrough(t *testing.T) {
	set := types.PatternSet{
		{Pattern: `alpha`, ID: 11, Flags: types.DefaultFlags},
		{Pattern: `beta`, ID: 42, Flags: types.DefaultFlags | types.FlagCaseless},
	}
	m, s := compileHyperscan(t, set)

	hits := scanAll(t, m, s, "alpha BETA\n")

	require.Len(t, hits, 2)
	assert.Equal(t, uint(11), hits[0].ID)
	assert.Equal(t, uint(42), hits[1].ID)
}

func TestHyperscan_CompileError(t *testing.T) {
	eng, err := New(EngineHyperscan)
	require.NoError(t, err)

	_, err = eng.Compile(types.NewPatternSet(`[invalid(`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCompile))
}

func TestHyperscan_EmptyBuffer(t *testing.T) {
	m, s := compileHyperscan(t, types.NewPatternSet(`x`))
	assert.Empty(t, scanAll(t, m, s, ""))
	assert.NotEmpty(t, HyperscanVersion())
}
