package jsonutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIndentWithNewline(t *testing.T) {
	t.Parallel()

	data, err := MarshalIndentWithNewline(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasSuffix(s, "\n"))
	assert.Contains(t, s, "  \"a\": 1")
}

func TestMarshalCompactWithNewline(t *testing.T) {
	t.Parallel()

	data, err := MarshalCompactWithNewline(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(data))
}

func TestMarshalErrors(t *testing.T) {
	t.Parallel()

	_, err := MarshalIndentWithNewline(func() {}, "", "  ")
	assert.Error(t, err)

	_, err = MarshalCompactWithNewline(make(chan int))
	assert.Error(t, err)
}
