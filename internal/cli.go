package internal

import (
	"strings"

	"github.com/davidmdm/ansi"
)

var (
	cyan   = ansi.MakeStyle(ansi.FgCyan)
	yellow = ansi.MakeStyle(ansi.FgYellow)
	red    = ansi.MakeStyle(ansi.FgRed)
)

// Colorize styles help text lines prefixed with a color directive such as "!cyan".
func Colorize(value string) string {
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if len(line) == 0 || line[0] != '!' {
			continue
		}

		color, line, _ := strings.Cut(line, " ")
		switch color {
		case "!cyan":
			lines[i] = cyan.Sprint(line)
		case "!yellow":
			lines[i] = yellow.Sprint(line)
		case "!red":
			lines[i] = red.Sprint(line)
		default:
			lines[i] = line
		}
	}
	return strings.Join(lines, "\n")
}
