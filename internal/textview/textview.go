// Package textview draws a laid-out month as a fixed-width terminal grid.
package textview

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"monthcal/internal/calendar"
)

const (
	defaultCellWidth = 12
	sep              = "│"
)

// Palette shared with the HTML view where it makes sense.
var (
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")
	colorBar    = lipgloss.Color("#83a598")
	colorFg     = lipgloss.Color("#ebdbb2")
)

// Options controls terminal rendering.
type Options struct {
	// CellWidth is the width of one day column in terminal cells.
	CellWidth int
	// Renderer picks the color profile; nil uses lipgloss' default renderer.
	Renderer *lipgloss.Renderer
}

type styles struct {
	title, header, dim, day, more lipgloss.Style
	renderer                      *lipgloss.Renderer
}

func newStyles(r *lipgloss.Renderer) styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return styles{
		title:    r.NewStyle().Foreground(colorHeader).Bold(true),
		header:   r.NewStyle().Foreground(colorHeader),
		dim:      r.NewStyle().Foreground(colorDim),
		day:      r.NewStyle().Bold(true),
		more:     r.NewStyle().Foreground(colorDim).Italic(true),
		renderer: r,
	}
}

func (s styles) bar(color string) lipgloss.Style {
	bg := colorBar
	if color != "" {
		bg = lipgloss.Color(color)
	}
	return s.renderer.NewStyle().Background(bg).Foreground(colorFg)
}

func (s styles) single(color string) lipgloss.Style {
	if color == "" {
		return s.renderer.NewStyle()
	}
	return s.renderer.NewStyle().Foreground(lipgloss.Color(color))
}

// Render draws vm: a title, a weekday header, then for every week the day
// numbers, one text line per event line and a "+N more" line when the line
// cap hid events.
func Render(vm calendar.ViewModel, opts Options) string {
	w := opts.CellWidth
	if w <= 0 {
		w = defaultCellWidth
	}
	st := newStyles(opts.Renderer)
	rule := strings.Repeat("─", calendar.DaysPerWeek*w+calendar.DaysPerWeek-1)

	var b strings.Builder
	first := time.Date(vm.Year, time.Month(vm.MonthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	b.WriteString(st.title.Render(first.Format("January 2006")))
	b.WriteString("\n")

	header := make([]string, 0, calendar.DaysPerWeek)
	for i := 0; i < calendar.DaysPerWeek && i < len(vm.Grid); i++ {
		header = append(header, st.header.Render(fit(vm.Grid[i].Weekday.String()[:3], w)))
	}
	b.WriteString(strings.Join(header, sep))
	b.WriteString("\n")

	for row := 0; row < calendar.Weeks(vm.Grid); row++ {
		b.WriteString(rule)
		b.WriteString("\n")
		writeWeek(&b, vm, row, w, st)
	}
	return b.String()
}

func writeWeek(b *strings.Builder, vm calendar.ViewModel, row, w int, st styles) {
	days := vm.Grid[row*calendar.DaysPerWeek : (row+1)*calendar.DaysPerWeek]

	nums := make([]string, 0, calendar.DaysPerWeek)
	for _, d := range days {
		cell := fit(strconv.Itoa(d.DayNumber), w)
		if d.IsCurrentMonth {
			nums = append(nums, st.day.Render(cell))
		} else {
			nums = append(nums, st.dim.Render(cell))
		}
	}
	b.WriteString(strings.Join(nums, sep))
	b.WriteString("\n")

	// line -> column -> content
	bars := make(map[int]map[int]calendar.Fragment)
	singles := make(map[int]map[int]calendar.Event)
	maxLine := -1
	for col, d := range days {
		for _, ev := range vm.EventsOn(d.ID) {
			if singles[ev.LinePosition] == nil {
				singles[ev.LinePosition] = make(map[int]calendar.Event)
			}
			singles[ev.LinePosition][col] = ev
			maxLine = max(maxLine, ev.LinePosition)
		}
	}
	for _, f := range vm.FragmentsInRow(row) {
		line := f.Event.LinePosition
		if bars[line] == nil {
			bars[line] = make(map[int]calendar.Fragment)
		}
		bars[line][f.Column] = f
		maxLine = max(maxLine, line)
	}

	for line := 0; line <= maxLine; line++ {
		var parts []string
		for col := 0; col < calendar.DaysPerWeek; {
			if f, ok := bars[line][col]; ok {
				span := min(f.SpanDays, calendar.DaysPerWeek-col)
				parts = append(parts, st.bar(f.Event.GroupColor).Render(barText(f, span*w+span-1)))
				col += span
				continue
			}
			if ev, ok := singles[line][col]; ok {
				parts = append(parts, st.single(ev.GroupColor).Render(fit(ev.DisplayText, w)))
			} else {
				parts = append(parts, strings.Repeat(" ", w))
			}
			col++
		}
		b.WriteString(strings.Join(parts, sep))
		b.WriteString("\n")
	}

	var more []string
	hasMore := false
	for _, d := range days {
		if n := vm.Overflow[d.ID]; n > 0 {
			hasMore = true
			more = append(more, st.more.Render(fit(fmt.Sprintf("+%d more", n), w)))
		} else {
			more = append(more, strings.Repeat(" ", w))
		}
	}
	if hasMore {
		b.WriteString(strings.Join(more, sep))
		b.WriteString("\n")
	}
}

// barText lays the title across width cells with continuation markers on
// the sides that run into another week.
func barText(f calendar.Fragment, width int) string {
	prefix, suffix := "", ""
	if f.StartsBeforeThisWeek {
		prefix = "◀ "
	}
	if f.ContinuesAfterThisWeek {
		suffix = " ▶"
	}
	return fit(prefix+f.Event.DisplayText, width-lipgloss.Width(suffix)) + suffix
}

// fit truncates s with an ellipsis or pads it with spaces to exactly width
// terminal cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}
