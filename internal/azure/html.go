package azure

import (
	"fmt"
	"strings"
)

// ToHTML converts plain text to HTML for Azure DevOps rich-text fields.
//
// Lines starting with "•" become <li> items inside a <ul>; other non-empty
// lines become <p> paragraphs; blank lines are ignored.
func ToHTML(text string) string {
	if text == "" {
		return text
	}

	var parts []string
	var bullets []string

	flushBullets := func() {
		if len(bullets) == 0 {
			return
		}
		var items strings.Builder
		for _, b := range bullets {
			items.WriteString(fmt.Sprintf("<li>%s</li>", b))
		}
		parts = append(parts, fmt.Sprintf("<ul>%s</ul>", items.String()))
		bullets = bullets[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if strings.HasPrefix(stripped, "•") {
			bullets = append(bullets, strings.TrimSpace(strings.TrimLeft(stripped, "• ")))
		} else {
			flushBullets()
			parts = append(parts, fmt.Sprintf("<p>%s</p>", stripped))
		}
	}

	flushBullets()
	return strings.Join(parts, "")
}
