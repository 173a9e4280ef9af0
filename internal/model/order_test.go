package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashEmail(t *testing.T) {
	base := HashEmail("guest@example.com")
	assert.Len(t, base, 64)

	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "Same address", email: "guest@example.com", expected: base},
		{name: "Case and whitespace ignored", email: "  Guest@Example.COM ", expected: base},
		{name: "Empty", email: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HashEmail(tt.email))
		})
	}

	assert.NotEqual(t, base, HashEmail("other@example.com"))
}
