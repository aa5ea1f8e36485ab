package template

import (
	"fmt"
	"strconv"
)

// FormatTree renders a document as an indented tree with per-feature story
// and story-point rollups, for display after generation.
func FormatTree(doc *Document) []string {
	var lines []string
	for _, epic := range doc.Epics {
		lines = append(lines, fmt.Sprintf("Epic: %s", epic.Title))
		for i, feat := range epic.Features {
			last := i == len(epic.Features)-1
			prefix := "├── "
			childPrefix := "│   "
			if last {
				prefix = "└── "
				childPrefix = "    "
			}

			sp := 0.0
			for _, story := range feat.Stories {
				if story.StoryPoints != nil {
					sp += *story.StoryPoints
				}
			}
			opt := ""
			if feat.Optional {
				opt = " (optional)"
			}
			lines = append(lines, fmt.Sprintf("  %sFeature: %s%s  [%d stories, %s SP]",
				prefix, feat.Title, opt, len(feat.Stories), formatNum(sp)))

			for j, story := range feat.Stories {
				lastStory := j == len(feat.Stories)-1
				storyPrefix := "├── "
				storyChild := "│   "
				if lastStory {
					storyPrefix = "└── "
					storyChild = "    "
				}
				lines = append(lines, fmt.Sprintf("  %s%sStory: %s  (SP: %s)",
					childPrefix, storyPrefix, story.Title, formatNum(floatVal(story.StoryPoints))))

				for k, task := range story.Tasks {
					taskPrefix := "├── "
					if k == len(story.Tasks)-1 {
						taskPrefix = "└── "
					}
					lines = append(lines, fmt.Sprintf("  %s%s%sTask: %s  (%sh)",
						childPrefix, storyChild, taskPrefix, task.Title, formatNum(floatVal(task.Estimate))))
				}
			}
		}
	}
	return lines
}

// Totals sums story points across all stories and estimate hours across all
// tasks in the document.
func Totals(doc *Document) (storyPoints, estimateHours float64) {
	for _, epic := range doc.Epics {
		for _, feat := range epic.Features {
			for _, story := range feat.Stories {
				storyPoints += floatVal(story.StoryPoints)
				for _, task := range story.Tasks {
					estimateHours += floatVal(task.Estimate)
				}
			}
		}
	}
	return storyPoints, estimateHours
}

func floatVal(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// formatNum renders integral floats without a trailing ".0".
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
