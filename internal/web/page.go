package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"monthcal/internal/calendar"
	appLog "monthcal/internal/log"
	"monthcal/internal/records"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

// 일요일 시작 기준의 요일 이름.
var weekdayNames = [7]string{"일", "월", "화", "수", "목", "금", "토"}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

type pageData struct {
	Title    string
	Month    string
	Prev     string
	Next     string
	Weekdays []string
	Weeks    []weekRow
}

type weekRow struct {
	Days  []dayCell
	Items []item
}

type dayCell struct {
	calendar.Day
	Column int
}

// item is one positioned block in a week's CSS grid. Rows and columns are
// 1-based; row 1 holds the day numbers.
type item struct {
	Class  string
	Column int
	Span   int
	Row    int
	Style  template.CSS
	Text   string
	Before bool
	After  bool
}

func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	vm, status, err := s.monthView(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, buildPage(vm)); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func buildPage(vm calendar.ViewModel) pageData {
	first := time.Date(vm.Year, time.Month(vm.MonthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	page := pageData{
		Title: fmt.Sprintf("%d년 %d월", first.Year(), int(first.Month())),
		Month: first.Format(records.MonthLayout),
		Prev:  first.AddDate(0, -1, 0).Format(records.MonthLayout),
		Next:  first.AddDate(0, 1, 0).Format(records.MonthLayout),
	}
	for i := 0; i < calendar.DaysPerWeek && i < len(vm.Grid); i++ {
		page.Weekdays = append(page.Weekdays, weekdayNames[vm.Grid[i].Weekday])
	}

	for row := 0; row < calendar.Weeks(vm.Grid); row++ {
		var week weekRow
		maxLine := -1
		for col := 0; col < calendar.DaysPerWeek; col++ {
			day := vm.Grid[row*calendar.DaysPerWeek+col]
			week.Days = append(week.Days, dayCell{Day: day, Column: col + 1})
			for _, ev := range vm.EventsOn(day.ID) {
				week.Items = append(week.Items, item{
					Class:  "single",
					Column: col + 1,
					Span:   1,
					Row:    ev.LinePosition + 2,
					Style:  colorStyle("border-left-color", ev.GroupColor),
					Text:   ev.DisplayText,
				})
				maxLine = max(maxLine, ev.LinePosition)
			}
		}
		for _, f := range vm.FragmentsInRow(row) {
			week.Items = append(week.Items, item{
				Class:  "bar " + string(f.Border),
				Column: f.Column + 1,
				Span:   f.SpanDays,
				Row:    f.Event.LinePosition + 2,
				Style:  colorStyle("background", f.Event.GroupColor),
				Text:   f.Event.DisplayText,
				Before: f.StartsBeforeThisWeek,
				After:  f.ContinuesAfterThisWeek,
			})
			maxLine = max(maxLine, f.Event.LinePosition)
		}
		for col := 0; col < calendar.DaysPerWeek; col++ {
			day := vm.Grid[row*calendar.DaysPerWeek+col]
			if n := vm.Overflow[day.ID]; n > 0 {
				week.Items = append(week.Items, item{
					Class:  "more",
					Column: col + 1,
					Span:   1,
					Row:    maxLine + 3,
					Text:   fmt.Sprintf("+%d more", n),
				})
			}
		}
		page.Weeks = append(page.Weeks, week)
	}
	return page
}

// colorStyle only lets plain hex colors through to the stylesheet.
func colorStyle(prop, color string) template.CSS {
	if !hexColor.MatchString(color) {
		return ""
	}
	return template.CSS(prop + ": " + color + ";")
}
