// Package display classifies, sorts and colors fund table cells for terminal output
package display

import (
	"regexp"
	"strconv"
	"strings"
)

// Tone is the color class of a table cell.
type Tone int

const (
	ToneNone Tone = iota
	TonePositive
	ToneNegative
)

func (t Tone) String() string {
	switch t {
	case TonePositive:
		return "positive"
	case ToneNegative:
		return "negative"
	default:
		return ""
	}
}

var (
	leadingNumber  = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	percentJunk    = strings.NewReplacer("%", "", ",", "", "亿", "", "万", "", "手", "")
	sortValueJunk  = strings.NewReplacer("%", "", "亿", "", "万", "", "元", "", "/", "", "克", "", "手", "", "¥", "", ",", "")
	placeholderSet = map[string]bool{"": true, "-": true, "N/A": true, "---": true}
)

// parseLeadingFloat reads the longest numeric prefix of s, ignoring leading
// spaces, the way a browser's parseFloat does.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimLeft(s, " \t\n"))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Classify decides the tone of a cell from its text. Placeholders are left
// alone, news sentiment words map directly, percentages go by the sign of
// their value and other text by a leading + or -.
func Classify(text string) Tone {
	text = strings.TrimSpace(text)
	if placeholderSet[text] {
		return ToneNone
	}
	switch text {
	case "利好":
		return TonePositive
	case "利空":
		return ToneNegative
	}

	if strings.Contains(text, "%") {
		part := text
		if strings.Contains(text, "/") && strings.Contains(text, " ") {
			fields := strings.Split(text, " ")
			part = fields[len(fields)-1]
		}
		v, ok := parseLeadingFloat(percentJunk.Replace(part))
		switch {
		case !ok || v == 0:
			return ToneNone
		case v > 0:
			return TonePositive
		default:
			return ToneNegative
		}
	}

	switch {
	case strings.HasPrefix(text, "+"):
		return TonePositive
	case strings.HasPrefix(text, "-"):
		return ToneNegative
	}
	return ToneNone
}
