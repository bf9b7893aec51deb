package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	args, err := EncodeArgs("chapter one", 7, 42)
	require.NoError(t, err)
	require.NoError(t, args.Expect(3))

	text, err := args.String(0)
	require.NoError(t, err)
	assert.Equal(t, "chapter one", text)

	n, err := args.Int(2)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestArgsErrors(t *testing.T) {
	args, err := EncodeArgs("not a number")
	require.NoError(t, err)

	var argErr *ArgumentError
	err = args.Expect(2)
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, -1, argErr.Index)
	assert.Equal(t, "invalid arguments: expected 2 arguments, got 1", err.Error())

	_, err = args.Int(0)
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, 0, argErr.Index)

	_, err = args.String(3)
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "invalid argument 3: missing", err.Error())
}
