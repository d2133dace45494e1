package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrJob,
		ErrLaunch,
		ErrFrame,
		ErrExport,
		ErrSample,
		ErrSSH,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	err := New(ErrJob, "Job 42 never started", "Check squeue for the job state.")

	require.NotNil(t, err)
	assert.Equal(t, ErrJob, err.Code)
	assert.Equal(t, "Job 42 never started", err.Message)
	assert.Equal(t, "Check squeue for the job state.", err.Suggestion)
	assert.Nil(t, err.Cause)
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "message only",
			err:      New(ErrJob, "Job never started", ""),
			contains: []string{"✗ Job never started"},
		},
		{
			name:     "message and suggestion",
			err:      New(ErrExport, "Couldn't write the export file", "Check the path is writable."),
			contains: []string{"✗ Couldn't write the export file", "Check the path is writable."},
		},
		{
			name:     "message with cause",
			err:      WrapWithCode(errors.New("permission denied"), ErrExport, "Couldn't write the export file", ""),
			contains: []string{"✗ Couldn't write the export file", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.Error()
			for _, want := range tt.contains {
				assert.True(t, strings.Contains(out, want), "output %q should contain %q", out, want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("squeue exited with status 1")
	err := Wrap(cause, "Couldn't query the job")

	assert.Equal(t, ErrJob, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.ErrorIs(t, err, cause)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := WrapWithCode(cause, ErrLaunch, "Couldn't start the collector on n3", "")

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestIsCode(t *testing.T) {
	err := New(ErrFrame, "Dropped a malformed frame", "")

	assert.True(t, IsCode(err, ErrFrame))
	assert.False(t, IsCode(err, ErrJob))
	assert.False(t, IsCode(nil, ErrFrame))
	assert.False(t, IsCode(errors.New("plain"), ErrFrame))

	// Wrapped structured errors still match by code.
	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsCode(wrapped, ErrFrame))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrJobNeverStarted))
	assert.True(t, IsFatal(ErrNoNodesAllocated))
	assert.True(t, IsFatal(WrapWithCode(ErrJobNeverStarted, ErrJob, "Job 7 is in state F", "")))

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrNodeLaunchFailed))
	assert.False(t, IsFatal(ErrFrameParse))
	assert.False(t, IsFatal(ErrCapabilityUnavailable))
}
