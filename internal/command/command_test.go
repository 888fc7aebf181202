package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordsSplitsOnWhitespace(t *testing.T) {
	assert.Equal(t, []string{"set", "k1", "5"}, words("  set   k1\t5\n"))
	assert.Empty(t, words("   \t\n"))
}

func TestParseSet(t *testing.T) {
	cmd, err := Parse("set k1 42")
	require.NoError(t, err)
	assert.Equal(t, Command{Verb: Set, Key: "k1", Value: 42}, cmd)
}

func TestParseGetAndDel(t *testing.T) {
	cmd, err := Parse("get k1")
	require.NoError(t, err)
	assert.Equal(t, Command{Verb: Get, Key: "k1"}, cmd)

	cmd, err = Parse("del k1")
	require.NoError(t, err)
	assert.Equal(t, Command{Verb: Del, Key: "k1"}, cmd)
}

func TestParseNullaryVerbs(t *testing.T) {
	for _, line := range []string{"begin", "commit", "abort", "keys"} {
		cmd, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, verbNames[line], cmd.Verb)
	}
}

func TestParseEmptyLine(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseRejectsUnknownVerb(t *testing.T) {
	_, err := Parse("frobnicate k1")
	assert.Error(t, err)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := Parse("set k1")
	assert.Error(t, err)

	_, err = Parse("begin now")
	assert.Error(t, err)
}

func TestParseRejectsNonIntegerValue(t *testing.T) {
	_, err := Parse("set k1 notanumber")
	assert.Error(t, err)
}
