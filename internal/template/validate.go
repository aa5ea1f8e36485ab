package template

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// Validate checks the template structure and returns a list of error
// messages, empty when the document is complete. A document with no epics
// fails immediately without further checks.
//
// Stories require a title, description, and acceptance criteria; tasks
// require a title and a non-zero estimate. The estimate check is deliberate
// truthiness: an explicit zero-hour estimate is flagged as missing.
func Validate(doc *Document) []string {
	var errs []string

	if len(doc.Epics) == 0 {
		return []string{"Template must contain at least one epic."}
	}

	for i, epic := range doc.Epics {
		if epic.Title == "" {
			errs = append(errs, fmt.Sprintf("Epic %d: missing title.", i+1))
		}
		for j, feat := range epic.Features {
			if feat.Title == "" {
				errs = append(errs, fmt.Sprintf("Epic %d, Feature %d: missing title.", i+1, j+1))
			}
			for k, story := range feat.Stories {
				if story.Title == "" {
					errs = append(errs, fmt.Sprintf("Feature '%s', Story %d: missing title.", nodeName(feat.Title, j), k+1))
				}
				if story.Description == "" {
					errs = append(errs, fmt.Sprintf("Story '%s': missing description.", nodeName(story.Title, k)))
				}
				if story.AcceptanceCriteria == "" {
					errs = append(errs, fmt.Sprintf("Story '%s': missing acceptance_criteria.", nodeName(story.Title, k)))
				}
				for m, task := range story.Tasks {
					if task.Title == "" {
						errs = append(errs, fmt.Sprintf("Story '%s', Task %d: missing title.", nodeName(story.Title, k), m+1))
					}
					if task.Estimate == nil || *task.Estimate == 0 {
						errs = append(errs, fmt.Sprintf("Task '%s': missing estimate.", nodeName(task.Title, m)))
					}
				}
			}
		}
	}
	return errs
}

// nodeName identifies a node by title, falling back to its 1-based position.
func nodeName(title string, index int) string {
	if title == "" {
		return fmt.Sprintf("%d", index+1)
	}
	return title
}

// CountWorkItems returns flat counts of epics, features, stories, and tasks
// across the document tree.
func CountWorkItems(doc *Document) (epics, features, stories, tasks int) {
	for _, epic := range doc.Epics {
		epics++
		for _, feat := range epic.Features {
			features++
			for _, story := range feat.Stories {
				stories++
				tasks += len(story.Tasks)
			}
		}
	}
	return epics, features, stories, tasks
}

// Slugify converts a project name to a filename-safe slug: lowercased, with
// runs of whitespace, underscores, and punctuation collapsed into single
// hyphens.
func Slugify(name string) string {
	return slug.Make(strings.ReplaceAll(name, "_", "-"))
}
