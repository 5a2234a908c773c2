package variables_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mush-shell/mush/internal/variables"
)

func TestSetGetStringRoundTrips(t *testing.T) {
	s := variables.New()
	require.NoError(t, s.SetString("x", "hello"))

	got, ok := s.GetString("x")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestGetStringUnknownNameReturnsFalse(t *testing.T) {
	s := variables.New()
	_, ok := s.GetString("nope")
	assert.False(t, ok)
}

func TestUnsetHidesValueButKeepsNameInOrder(t *testing.T) {
	s := variables.New()
	require.NoError(t, s.SetString("x", "hello"))
	require.NoError(t, s.Unset("x"))

	_, ok := s.GetString("x")
	assert.False(t, ok)

	var b strings.Builder
	require.NoError(t, s.Show(&b))
	assert.Equal(t, "{x }", b.String())
}

func TestSetStringEmptyNameFails(t *testing.T) {
	s := variables.New()
	err := s.SetString("", "v")
	assert.ErrorIs(t, err, variables.ErrEmptyName)
}

func TestGetIntStrictParsing(t *testing.T) {
	cases := []struct {
		value string
		want  int64
		ok    bool
	}{
		{"0", 0, true},
		{"-1", -1, true},
		{"2147483647", 2147483647, true},
		{"", 0, false},
		{" 1", 0, false},
		{"1 ", 0, false},
		{"1a", 0, false},
		{"0x10", 0, false},
		{"+1", 0, false},
		{"01", 0, false},
		{"-0", 0, true},
		{"-", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			s := variables.New()
			require.NoError(t, s.SetString("n", tc.value))

			var out int64
			err := s.GetInt("n", &out)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.want, out)
			} else {
				assert.ErrorIs(t, err, variables.ErrNotInt)
			}
		})
	}
}

func TestGetIntUnsetVariableFails(t *testing.T) {
	s := variables.New()
	require.NoError(t, s.SetString("n", "5"))
	require.NoError(t, s.Unset("n"))

	var out int64
	err := s.GetInt("n", &out)
	assert.ErrorIs(t, err, variables.ErrNotSet)
}

func TestGetIntUnknownVariableFails(t *testing.T) {
	s := variables.New()
	var out int64
	err := s.GetInt("missing", &out)
	assert.ErrorIs(t, err, variables.ErrNotSet)
}

func TestSetIntRendersCanonicalText(t *testing.T) {
	s := variables.New()
	require.NoError(t, s.SetInt("n", -42))

	got, ok := s.GetString("n")
	assert.True(t, ok)
	assert.Equal(t, "-42", got)
}

func TestShowEmptyStore(t *testing.T) {
	s := variables.New()
	var b strings.Builder
	require.NoError(t, s.Show(&b))
	assert.Equal(t, "{}", b.String())
}

func TestShowPreservesFirstDefinitionOrder(t *testing.T) {
	s := variables.New()
	require.NoError(t, s.SetString("b", "2"))
	require.NoError(t, s.SetString("a", "1"))
	require.NoError(t, s.SetString("b", "20"))

	var buf strings.Builder
	require.NoError(t, s.Show(&buf))
	assert.Equal(t, "{b=20, a=1}", buf.String())
}

func TestZeroValueStoreIsUsable(t *testing.T) {
	var s variables.Store
	require.NoError(t, s.SetString("x", "y"))
	got, ok := s.GetString("x")
	assert.True(t, ok)
	assert.Equal(t, "y", got)
}
