package engine

import (
	"regexp"
	"strconv"
	"strings"
)

var rePct = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)

// ParseProgressLine extracts the percentage from a yt-dlp
// "[download]  35.2% of ..." line.
func ParseProgressLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[download]") {
		return 0, false
	}
	m := rePct.FindStringSubmatch(line)
	if len(m) != 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v > 100 {
		v = 100
	}
	return v, true
}
