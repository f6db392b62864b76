package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploymentError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DeploymentError
		expected string
	}{
		{
			name: "with cause",
			err: &DeploymentError{
				Endpoint: "p/us-central1/fn",
				Op:       OpCreateFunction,
				Cause:    errors.New("quota exceeded"),
			},
			expected: "failed to create function for p/us-central1/fn: quota exceeded",
		},
		{
			name: "without cause",
			err: &DeploymentError{
				Endpoint: "p/us-central1/fn",
				Op:       OpSetInvoker,
			},
			expected: "failed to set invoker for p/us-central1/fn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDeployment_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Deployment("p/r/fn", OpDeleteFunction, cause)

	var depErr *DeploymentError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "p/r/fn", depErr.Endpoint)
	assert.Equal(t, OpDeleteFunction, depErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestDeployment_NilCause(t *testing.T) {
	assert.NoError(t, Deployment("p/r/fn", OpDeleteFunction, nil))
}

func TestDeployment_UnimplementedIsDetectable(t *testing.T) {
	err := Deployment("p/r/fn", OpUpsertSchedule, ErrUnimplemented)
	assert.ErrorIs(t, err, ErrUnimplemented)
}

func TestAbortedDeploymentError_Error(t *testing.T) {
	err := &AbortedDeploymentError{Endpoint: "p/r/fn"}
	assert.Contains(t, err.Error(), "p/r/fn")
	assert.Contains(t, err.Error(), "aborted")
}

func TestPreconditionError_Unwrap(t *testing.T) {
	cause := errors.New("missing source")
	err := Precondition("no source url configured", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "no source url configured: missing source", err.Error())
}
