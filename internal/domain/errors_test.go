package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	err := NewPipelineError(ErrInputInvalid, "unable to read image input", "decode failed", "req-1")
	assert.Equal(t, "INPUT_INVALID: unable to read image input", err.Error())
	assert.False(t, err.Timestamp.IsZero())
	assert.Equal(t, "req-1", err.RequestID)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"input invalid", InputInvalid("bad bytes"), ErrInputInvalid},
		{"inference unavailable", InferenceUnavailable("model file", "nothing"), ErrInferenceUnavailable},
		{"wrapped", fmt.Errorf("context: %w", InputInvalid("bad")), ErrInputInvalid},
		{"plain error", errors.New("boom"), ErrInternalServer},
		{"nil-ish", fmt.Errorf("no pipeline error"), ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := InputInvalid("bad")
	assert.True(t, IsCode(err, ErrInputInvalid))
	assert.False(t, IsCode(err, ErrInferenceUnavailable))
}

func TestInferenceUnavailable_Diagnostic(t *testing.T) {
	err := InferenceUnavailable("weight file at /models/w.bin", "stat failed")

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Details, "expected: weight file at /models/w.bin")
	assert.Contains(t, pe.Details, "found: stat failed")
}
