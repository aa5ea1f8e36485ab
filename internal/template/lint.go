package template

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxLineLength is deliberately generous: generated files carry long
// acceptance-criteria lines that are fine for machine-written YAML.
const maxLineLength = 250

// yamlErrLine extracts the line number from a yaml.v3 error message.
var yamlErrLine = regexp.MustCompile(`line (\d+):`)

// Lint runs a relaxed structural check against a saved YAML file. It returns
// false only when at least one error-level finding exists; warning-level
// findings are reported but do not fail the lint. Messages are formatted
// "line:col [level] message (rule)".
func Lint(path string) (bool, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var messages []string
	hasError := false

	report := func(line, col int, level, msg, rule string) {
		messages = append(messages, fmt.Sprintf("%d:%d [%s] %s (%s)", line, col, level, msg, rule))
		if level == "error" {
			hasError = true
		}
	}

	// Structural parse: a file the YAML parser rejects is an error finding,
	// not a lint crash.
	var parsed any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		line := 1
		if m := yamlErrLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		report(line, 1, "error", fmt.Sprintf("syntax error: %v", err), "syntax")
	}

	for i, line := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		if len(line) > maxLineLength {
			report(lineNo, maxLineLength+1, "error",
				fmt.Sprintf("line too long (%d > %d characters)", len(line), maxLineLength), "line-length")
		}
		if trimmed := strings.TrimRight(line, " "); trimmed != line {
			report(lineNo, len(trimmed)+1, "warning", "trailing spaces", "trailing-spaces")
		}
		if strings.HasPrefix(line, "\t") {
			report(lineNo, 1, "warning", "tab character used for indentation", "indentation")
		}
	}

	return !hasError, messages, nil
}
