package cli

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"strings"
	"testing"
)

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, DisplayWidth("\x1b[1;31mhello\x1b[0m"))
	assert.Equal(t, 3, DisplayWidth("a─b"))
}

func TestTable(t *testing.T) {
	rendered := Table("Results", []string{"dataset", "dice"}, [][]string{{"kvasir", "0.8123"}, {"etis", "0.5000"}})
	for _, want := range []string{"Results", "dataset", "dice", "kvasir", "0.8123", "etis"} {
		assert.Contains(t, rendered, want)
	}
	lines := strings.Split(rendered, "\n")
	assert.Greater(t, len(lines), 4)
}

func TestPrintCentered(t *testing.T) {
	var buf bytes.Buffer
	PrintCentered(&buf, "a\n\nbc")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "bc"))
}
