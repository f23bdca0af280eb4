// Package cli renders reports (banners and tables) for the command-line programs.
package cli

import (
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
	"io"
	"os"
	"regexp"
	"strings"
)

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// DisplayWidth of s removes its color/control sequences and returns the length of what is left.
func DisplayWidth(s string) int {
	return len([]rune(ansiFilter.ReplaceAllString(s, "")))
}

// terminalWidth of stdout, or 0 if it is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// PrintCentered prints the block of text to w, centered on the terminal width.
// If stdout is not a terminal, it is printed without indentation.
func PrintCentered(w io.Writer, block string) {
	lines := strings.Split(block, "\n")
	blockWidth := 0
	for _, line := range lines {
		blockWidth = max(blockWidth, DisplayWidth(line))
	}
	indent := max((terminalWidth()-blockWidth)/2, 0)
	for _, line := range lines {
		if len(line) == 0 {
			_, _ = fmt.Fprintln(w)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent), line)
	}
}

// Banner renders a highlighted message.
func Banner(message string) string {
	return lipgloss.NewStyle().
		Background(lipgloss.Color("13")).
		Foreground(lipgloss.Color("0")).
		Padding(1, 2).
		Render(message)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Table renders rows under headers, with rounded borders.
func Table(title string, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	if title == "" {
		return t.Render()
	}
	return lipgloss.JoinVertical(lipgloss.Center, lipgloss.NewStyle().Bold(true).Render(title), t.Render())
}
