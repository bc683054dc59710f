package text

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/davidmdm/ansi"
)

type File struct {
	Name    string
	Content string
}

type DiffOptions struct {
	Context int
	Color   bool
}

// Diff returns a unified diff from a to b. It is empty when both files are equal.
func Diff(a, b File, opts DiffOptions) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.Content),
		B:        difflib.SplitLines(b.Content),
		FromFile: a.Name,
		ToFile:   b.Name,
		Context:  opts.Context,
	})
	if opts.Color {
		return colorize(diff)
	}
	return diff
}

var (
	green = ansi.MakeStyle(ansi.FgGreen)
	red   = ansi.MakeStyle(ansi.FgRed)
)

func colorize(value string) string {
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if len(line) == 0 || strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		switch line[0] {
		case '-':
			lines[i] = red.Sprint(line)
		case '+':
			lines[i] = green.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}

func ToYAML(value any) (string, error) {
	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return buffer.String(), encoder.Close()
}

func ToYamlFile(name string, value any) (File, error) {
	content, err := ToYAML(value)
	return File{Name: name, Content: content}, err
}
