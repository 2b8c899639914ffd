package integrity

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

func TestChecksumDeterministic(t *testing.T) {
	c := NewChecker()

	first, err := c.Checksum([]byte("function a(){return 1}"))
	require.NoError(t, err)
	second, err := c.Checksum([]byte("function a(){return 1}"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Regexp(t, hexPattern, first)
}

func TestChecksumEmptyContent(t *testing.T) {
	c := NewChecker()

	// Empty but non-nil content is legal.
	sum, err := c.Checksum([]byte{})
	require.NoError(t, err)
	assert.Regexp(t, hexPattern, sum)
}

func TestChecksumNilContent(t *testing.T) {
	c := NewChecker()

	_, err := c.Checksum(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestVerifyChecksum(t *testing.T) {
	c := NewChecker()
	content := []byte("const x=1;")

	sum, err := c.Checksum(content)
	require.NoError(t, err)

	ok, err := c.VerifyChecksum(content, sum)
	require.NoError(t, err)
	assert.True(t, ok)

	// Case-insensitive hex comparison.
	ok, err = c.VerifyChecksum(content, strings.ToUpper(sum))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.VerifyChecksum([]byte("corrupted"), sum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChecksumEmptyExpected(t *testing.T) {
	c := NewChecker()

	_, err := c.VerifyChecksum([]byte("data"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestVerifyRequest(t *testing.T) {
	c := NewChecker()

	tests := []struct {
		name   string
		prompt string
		valid  bool
	}{
		{"normal prompt", "analyze this module", true},
		{"empty prompt", "", false},
		{"whitespace only", "   \t\n ", false},
		{"single rune", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.VerifyRequest(tt.prompt)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

func TestVerifyRealExecution(t *testing.T) {
	c := NewChecker()

	require.NoError(t, c.VerifyRealExecution(ExecutionReal))

	err := c.VerifyRealExecution(ExecutionFailed)
	require.Error(t, err)
	var violation *SimulationViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, ExecutionFailed, violation.Marker)

	// Missing marker is a violation too, with its own message.
	err = c.VerifyRealExecution("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	err = c.VerifyRealExecution("simulated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation violation")
}

func TestValidExecution(t *testing.T) {
	assert.True(t, ValidExecution(ExecutionReal))
	assert.True(t, ValidExecution(ExecutionFailed))
	assert.False(t, ValidExecution(""))
	assert.False(t, ValidExecution("simulated"))
}
