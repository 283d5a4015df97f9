package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "invoice-042", "invoice-042"},
		{"slashes become underscores", "2026/001", "2026_001"},
		{"spaces and symbols", "ACME GmbH & Co.", "ACME_GmbH_Co"},
		{"leading and trailing junk trimmed", "..hidden--", "hidden"},
		{"unicode collapsed", "Büro Nr. 7", "B_ro_Nr._7"},
		{"nothing usable", "///", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.input))
		})
	}
}

func TestSanitizeNameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 300)
	assert.Len(t, SanitizeName(long), 120)
}
