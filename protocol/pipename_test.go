package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipeName(t *testing.T) {
	assert.Equal(t, `\\.\PIPE\Everything IPC`, PipeName(""))
	assert.Equal(t, `\\.\PIPE\Everything IPC (work)`, PipeName("work"))
}

func TestEscapeInstance(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"plain":     "plain",
		"a:b":       "a%3Ab",
		`c\d`:       "c%5Cd",
		"50%":       "50%25",
		`%:\`:       "%25%3A%5C",
		"spaces ok": "spaces ok",
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeInstance(in), "input %q", in)
	}
}
