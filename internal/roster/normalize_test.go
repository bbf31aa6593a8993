package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already canonical", "S001", "S001"},
		{"lowercase", "s001", "S001"},
		{"surrounding whitespace", "  S001  ", "S001"},
		{"trailing newline from scanner", "S001\n", "S001"},
		{"combining caron", "š001", "S001"},
		{"acute accent", "Érik-7", "ERIK-7"},
		{"cedilla and tilde", "ação", "ACAO"},
		{"group style tag", " mca-1 ", "MCA-1"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeIdentifier(tt.input))
		})
	}
}
