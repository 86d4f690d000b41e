package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/ownership/internal/filelock"
	"github.com/Iron-Ham/ownership/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// maxPathWidth caps the FILE column of table output.
const maxPathWidth = 60

// Palette for table output; colors are dropped when w is not a terminal.
var (
	colorHeader  = lipgloss.Color("#A78BFA")
	colorOwner   = lipgloss.Color("#10B981")
	colorExpiry  = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorWarning = lipgloss.Color("#EF4444")
)

// lockView is the rendered form of a lock.
type lockView struct {
	FilePath   string    `json:"filePath" yaml:"filePath"`
	Owner      string    `json:"owner" yaml:"owner"`
	AcquiredAt time.Time `json:"acquiredAt" yaml:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt" yaml:"expiresAt"`
	Remaining  string    `json:"remaining" yaml:"remaining"`
}

func newLockView(l filelock.FileLock, now time.Time) lockView {
	return lockView{
		FilePath:   l.FilePath,
		Owner:      l.Owner,
		AcquiredAt: l.AcquiredTime().UTC(),
		ExpiresAt:  l.ExpiresTime().UTC(),
		Remaining:  l.Remaining(now).Round(time.Second).String(),
	}
}

// renderLocks writes locks to w in the requested format.
func renderLocks(w io.Writer, locks []filelock.FileLock, format string, now time.Time) error {
	views := make([]lockView, 0, len(locks))
	for _, l := range locks {
		views = append(views, newLockView(l, now))
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		renderTable(w, views)
		return nil
	}
	return fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, formatTable, formatJSON, formatYAML)
}

func renderTable(w io.Writer, views []lockView) {
	r := lipgloss.NewRenderer(w)
	if len(views) == 0 {
		fmt.Fprintln(w, r.NewStyle().Foreground(colorMuted).Render("No active locks."))
		return
	}

	headers := []string{"FILE", "OWNER", "EXPIRES", "REMAINING"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{util.ShortenPath(v.FilePath, maxPathWidth), v.Owner, v.ExpiresAt.Local().Format(time.DateTime), v.Remaining})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	headerStyle := r.NewStyle().Bold(true).Foreground(colorHeader)
	cellStyles := []lipgloss.Style{
		r.NewStyle(),
		r.NewStyle().Foreground(colorOwner),
		r.NewStyle().Foreground(colorMuted),
		r.NewStyle().Foreground(colorExpiry),
	}

	fmt.Fprintln(w, formatRow(headers, widths, func(int) lipgloss.Style { return headerStyle }))
	for _, row := range rows {
		fmt.Fprintln(w, formatRow(row, widths, func(i int) lipgloss.Style { return cellStyles[i] }))
	}
}

// formatRow pads each cell to its column width before styling, so escape
// sequences never skew the alignment.
func formatRow(cells []string, widths []int, style func(int) lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		padded := cell
		if i < len(cells)-1 {
			padded += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		parts[i] = style(i).Render(padded)
	}
	return strings.Join(parts, "  ")
}

// warnf prints a highlighted warning line.
func warnf(w io.Writer, format string, args ...any) {
	r := lipgloss.NewRenderer(w)
	fmt.Fprintln(w, r.NewStyle().Foreground(colorWarning).Render(fmt.Sprintf(format, args...)))
}

// pathFilter matches lock paths against an optional glob. "**" crosses
// directories; "*" stays within one.
type pathFilter struct {
	g glob.Glob
}

func newPathFilter(pattern string) (*pathFilter, error) {
	if pattern == "" {
		return &pathFilter{}, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid --match pattern %q: %w", pattern, err)
	}
	return &pathFilter{g: g}, nil
}

func (f *pathFilter) Match(path string) bool {
	return f.g == nil || f.g.Match(path)
}

// filterLocks keeps locks matching owner (when non-empty) and the path filter.
func filterLocks(locks []filelock.FileLock, owner string, f *pathFilter) []filelock.FileLock {
	var out []filelock.FileLock
	for _, l := range locks {
		if owner != "" && l.Owner != owner {
			continue
		}
		if !f.Match(l.FilePath) {
			continue
		}
		out = append(out, l)
	}
	return out
}
