package display

import (
	"math"
	"sort"
	"strings"
)

// SortValue is a parsed cell used as a sort key. Cells that read as numbers
// compare numerically and come before cells that do not.
type SortValue struct {
	Num   float64
	Str   string
	IsNum bool
}

// ParseSortValue parses a cell for sorting. Placeholders sort as negative
// infinity; units and currency marks are stripped before reading a number.
func ParseSortValue(text string) SortValue {
	text = strings.TrimSpace(text)
	switch text {
	case "", "N/A", "--", "---":
		return SortValue{Num: math.Inf(-1), IsNum: true}
	}
	if v, ok := parseLeadingFloat(sortValueJunk.Replace(text)); ok {
		return SortValue{Num: v, IsNum: true}
	}
	return SortValue{Str: strings.ToLower(text)}
}

// Compare returns -1, 0 or 1.
func (v SortValue) Compare(o SortValue) int {
	switch {
	case v.IsNum && o.IsNum:
		switch {
		case v.Num < o.Num:
			return -1
		case v.Num > o.Num:
			return 1
		}
		return 0
	case v.IsNum:
		return -1
	case o.IsNum:
		return 1
	}
	return strings.Compare(v.Str, o.Str)
}

// Direction is a sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sorter remembers the last sorted column. Sorting the same column again
// flips the direction; a new column starts ascending.
type Sorter struct {
	col int
	dir Direction
}

// NewSorter returns a sorter with no column selected
func NewSorter() *Sorter {
	return &Sorter{col: -1}
}

// Column returns the current sort column and direction. Column is -1 before
// the first sort.
func (s *Sorter) Column() (int, Direction) {
	return s.col, s.dir
}

// Sort orders rows in place by column col and returns the direction used.
// Rows lacking the column sort as placeholders. The sort is stable.
func (s *Sorter) Sort(rows [][]string, col int) Direction {
	dir := Ascending
	if s.col == col && s.dir == Ascending {
		dir = Descending
	}
	s.col, s.dir = col, dir

	keys := make([]SortValue, len(rows))
	for i, r := range rows {
		cell := ""
		if col >= 0 && col < len(r) {
			cell = r[col]
		}
		keys[i] = ParseSortValue(cell)
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := keys[idx[a]].Compare(keys[idx[b]])
		if dir == Descending {
			return c > 0
		}
		return c < 0
	})

	sorted := make([][]string, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
	return dir
}
