package gdrive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "march.ods", "march.ods"},
		{"single quote", "o'brien.ods", `o\'brien.ods`},
		{"backslash", `hours\2026.ods`, `hours\\2026.ods`},
		{"backslash before quote", `\'`, `\\\'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeQuery(tt.input))
		})
	}
}
