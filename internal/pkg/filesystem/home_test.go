package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := map[string]string{
		"~":                  "/home/tester",
		"~/.kernhell/keys":   "/home/tester/.kernhell/keys",
		"/var/lib/kernhell/": "/var/lib/kernhell",
		"relative/../state":  "state",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExpandHome(in), in)
	}
	assert.Equal(t, filepath.Join("/home/tester", ".kernhell"), DefaultStateDir())
}
