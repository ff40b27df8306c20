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
		ErrSSH,
		ErrCommand,
		ErrParse,
		ErrTimeout,
		ErrNotFound,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in slurmdash.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "ssh error",
			code:       ErrSSH,
			message:    "Can't reach 'hpc1'",
			suggestion: "Try: ssh hpc1",
		},
		{
			name:       "command error",
			code:       ErrCommand,
			message:    "sinfo exited with status 1",
			suggestion: "Check that Slurm is installed on the login node",
		},
		{
			name:       "parse error",
			code:       ErrParse,
			message:    "squeue output is not valid JSON",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
	}{
		{
			name:          "basic error formatting",
			err:           New(ErrConfig, "Invalid configuration", "Check slurmdash.yaml syntax"),
			expectedParts: []string{"Invalid configuration", "Check slurmdash.yaml syntax"},
		},
		{
			name:          "error with failure symbol",
			err:           New(ErrSSH, "Connection failed", "Try again"),
			expectedParts: []string{"✗", "Connection failed"},
		},
		{
			name:          "wrapped cause is rendered",
			err:           WrapWithCode(errors.New("exit status 1"), ErrCommand, "squeue failed", ""),
			expectedParts: []string{"squeue failed", "exit status 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "SSH connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrSSH, wrapped.Code, "Wrap should default to ErrSSH code")
	assert.Equal(t, cause, wrapped.Cause)
}

func TestErrorsIsAndAs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := WrapWithCode(cause, ErrTimeout, "Refresh timed out", "")

	assert.True(t, errors.Is(wrapped, cause))

	var sdErr *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &sdErr))
	assert.Equal(t, ErrTimeout, sdErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrParse, "Parse error", "")

	assert.True(t, IsCode(err, ErrParse))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(errors.New("standard error"), ErrParse))
	assert.False(t, IsCode(nil, ErrParse))
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrCommand, Code(New(ErrCommand, "x", "")))
	assert.Equal(t, ErrSSH, Code(fmt.Errorf("wrapped: %w", Wrap(errors.New("boom"), "dial"))))
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("hpc9")

	assert.Equal(t, ErrNotFound, err.Code)
	assert.Contains(t, err.Message, "hpc9")
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain multi-line", errors.New("line one\n  line two"), "line one line two"},
		{"structured without cause", New(ErrParse, "bad json", "ignored"), "bad json"},
		{
			name: "structured with structured cause",
			err:  WrapWithCode(New(ErrSSH, "handshake failed", "x"), ErrSSH, "Can't reach 'hpc1'", "y"),
			want: "Can't reach 'hpc1': handshake failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.err))
		})
	}
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("Connection timed out after 2s"),
		ErrSSH,
		"Cannot reach cluster login node",
		"Run: ssh hpc1",
	)

	lines := strings.Split(err.Error(), "\n")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "First line should start with failure symbol")
	assert.Contains(t, lines[0], "Cannot reach cluster login node")
}
