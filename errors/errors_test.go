package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestSetupf_MarksAndKeepsCause(t *testing.T) {
	cause := &os.PathError{Op: "mkdir", Path: "/nope", Err: os.ErrPermission}
	err := Setupf(cause, "create log directory %s", "/nope")

	assert.True(t, IsSetupError(err))
	assert.Contains(t, err.Error(), "create log directory /nope")

	var pathErr *os.PathError
	require.True(t, As(err, &pathErr))
	assert.Equal(t, "/nope", pathErr.Path)
}

func TestIsNotRegistered(t *testing.T) {
	assert.False(t, IsNotRegistered(nil))
	assert.False(t, IsNotRegistered(New("other")))
	assert.True(t, IsNotRegistered(Wrap(ErrNotRegistered, "launchctl remove")))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrStaleRecord, "run 'dawn install polling'")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "run 'dawn install polling'", hints[0])
	assert.True(t, Is(err, ErrStaleRecord))
}

func TestCombineErrors(t *testing.T) {
	first := New("native failed")
	second := New("polling failed")

	combined := CombineErrors(first, second)
	assert.True(t, Is(combined, first))
	assert.Equal(t, second, CombineErrors(nil, second))
	assert.Nil(t, CombineErrors(nil, nil))

	// The secondary error is retained in the verbose form
	assert.Contains(t, fmt.Sprintf("%+v", combined), "polling failed")
}
