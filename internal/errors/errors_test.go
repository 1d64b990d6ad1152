package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(CategoryFont, SeverityWarning, "no usable export backend")
	require.Equal(t, "font (warning): no usable export backend", e.Error())

	cause := stderrors.New("bad sfnt header")
	w := Wrap(cause, CategoryFont, SeverityWarning, "parse failed")
	require.Equal(t, "font (warning): parse failed: bad sfnt header", w.Error())
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("no such file")
	w := WrapError(cause, CategoryFileSystem, "read page")
	require.Equal(t, SeverityError, w.Severity)
	require.ErrorIs(t, w, cause)
}

func TestWithContext(t *testing.T) {
	e := New(CategoryInput, SeverityFatal, "input file not found").
		WithContext("path", "book.tex").
		WithContext("stage", "flatten")
	require.Equal(t, "book.tex", e.Context["path"])
	require.Equal(t, "flatten", e.Context["stage"])
}

func TestCategoryClassification(t *testing.T) {
	e := New(CategoryConvert, SeverityFatal, "converter exited 1")
	require.True(t, IsCategory(e, CategoryConvert))
	require.False(t, IsCategory(e, CategoryFont))
	require.Equal(t, CategoryConvert, GetCategory(e))

	// Plain errors have no category and classify as internal.
	plain := stderrors.New("boom")
	require.False(t, IsCategory(plain, CategoryConvert))
	require.Equal(t, CategoryInternal, GetCategory(plain))
}
