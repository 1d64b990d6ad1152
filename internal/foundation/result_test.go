package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultOk(t *testing.T) {
	r := Ok[int, error](42)
	require.True(t, r.IsOk())
	require.False(t, r.IsErr())
	require.Equal(t, 42, r.Unwrap())
	require.Equal(t, 42, r.UnwrapOr(7))
}

func TestResultErr(t *testing.T) {
	boom := errors.New("boom")
	r := Err[int](boom)
	require.True(t, r.IsErr())
	require.False(t, r.IsOk())
	require.Equal(t, boom, r.UnwrapErr())
	require.Equal(t, 7, r.UnwrapOr(7))
}

func TestResultUnwrapPanics(t *testing.T) {
	require.Panics(t, func() { Err[int](errors.New("boom")).Unwrap() })
	require.Panics(t, func() { Ok[int, error](1).UnwrapErr() })
}

func TestResultMatch(t *testing.T) {
	var got int
	var failed error
	Ok[int, error](3).Match(
		func(v int) { got = v },
		func(err error) { failed = err },
	)
	require.Equal(t, 3, got)
	require.NoError(t, failed)

	boom := errors.New("boom")
	Err[int](boom).Match(
		func(v int) { got = -1 },
		func(err error) { failed = err },
	)
	require.Equal(t, 3, got)
	require.Equal(t, boom, failed)
}

func TestResultTupleRoundtrip(t *testing.T) {
	v, err := Ok[string, error]("done").ToTuple()
	require.NoError(t, err)
	require.Equal(t, "done", v)

	boom := errors.New("boom")
	v, err = Err[string](boom).ToTuple()
	require.Equal(t, boom, err)
	require.Empty(t, v)

	require.True(t, FromTuple[string, error]("done", nil).IsOk())
	require.True(t, FromTuple[string]("", boom).IsErr())
}
