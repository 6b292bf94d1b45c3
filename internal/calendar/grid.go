package calendar

import "time"

// Day is one cell of the month grid. Cells from the neighbouring months keep
// their real date so index math never has to special-case padding.
type Day struct {
	ID             CivilDate    `json:"id"`
	DayNumber      int          `json:"dayNumber"`
	IsCurrentMonth bool         `json:"isCurrentMonth"`
	Weekday        time.Weekday `json:"weekday"`
}

// BuildGrid returns the cells for the month, row-major by week, starting on
// weekStart. monthIndex is zero-based; values outside 0..11 roll into the
// neighbouring years through time.Date.
//
// The result always has a length that is a multiple of 7 and covers the
// week of the first day through the week of the last day.
func BuildGrid(year, monthIndex int, weekStart time.Weekday) []Day {
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	lead := (int(first.Weekday()) - int(weekStart) + DaysPerWeek) % DaysPerWeek
	trail := (int(weekStart) + DaysPerWeek - 1 - int(last.Weekday())) % DaysPerWeek

	gridStart := first.AddDate(0, 0, -lead)
	total := lead + last.Day() + trail

	days := make([]Day, 0, total)
	for i := 0; i < total; i++ {
		d := gridStart.AddDate(0, 0, i)
		days = append(days, Day{
			ID:             CivilDate(d.Format(civilLayout)),
			DayNumber:      d.Day(),
			IsCurrentMonth: d.Month() == first.Month() && d.Year() == first.Year(),
			Weekday:        d.Weekday(),
		})
	}
	return days
}

// IndexGrid maps each cell's date to its position in the grid.
func IndexGrid(grid []Day) map[CivilDate]int {
	idx := make(map[CivilDate]int, len(grid))
	for i, d := range grid {
		idx[d.ID] = i
	}
	return idx
}

// Weeks returns the number of rows in the grid.
func Weeks(grid []Day) int {
	return len(grid) / DaysPerWeek
}

// Position converts a grid index to its row and column.
func Position(index int) (row, col int) {
	return index / DaysPerWeek, index % DaysPerWeek
}
