package mapping

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSlice(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, MapSlice([]int{1, 2}, strconv.Itoa))

	out := MapSlice[int, string](nil, strconv.Itoa)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMapSliceErr(t *testing.T) {
	out, err := MapSliceErr([]string{"1", "2"}, strconv.Atoi)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out)

	_, err = MapSliceErr([]string{"1", "x"}, strconv.Atoi)
	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr))
}
