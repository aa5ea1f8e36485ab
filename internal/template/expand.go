package template

import "strings"

// replaceName substitutes {{name}} and {{ name }} placeholders with an
// instance name.
func replaceName(text, instanceName string) string {
	if text == "" {
		return text
	}
	text = strings.ReplaceAll(text, "{{name}}", instanceName)
	return strings.ReplaceAll(text, "{{ name }}", instanceName)
}

// ExpandParameterized expands a parameterized feature into one copy per
// default instance, substituting placeholders in the feature title and
// description and in every contained story and task description.
//
// A non-parameterized feature, or one with no instances, comes back as a
// single-element slice containing the feature unchanged. Expanded copies
// carry only title, description, and stories; authoring metadata does not
// survive expansion.
func ExpandParameterized(feature *Feature) []*Feature {
	if !feature.Parameterized || len(feature.DefaultInstances) == 0 {
		return []*Feature{feature}
	}

	expanded := make([]*Feature, 0, len(feature.DefaultInstances))
	for _, instanceName := range feature.DefaultInstances {
		featCopy := &Feature{
			Title:       replaceName(feature.Title, instanceName),
			Description: replaceName(feature.Description, instanceName),
		}
		for _, story := range feature.Stories {
			storyCopy := *story
			storyCopy.Description = replaceName(story.Description, instanceName)
			storyCopy.Tasks = copyTasks(story.Tasks, instanceName)
			featCopy.Stories = append(featCopy.Stories, &storyCopy)
		}
		expanded = append(expanded, featCopy)
	}
	return expanded
}

// ExpandParameterizedStories expands parameterized stories within a feature.
//
// Stories marked parameterized are duplicated once per default instance, with
// placeholders substituted in the title, description, acceptance criteria,
// and task descriptions; the parameterized / default_instances / instance_key
// metadata is stripped from each copy. Non-parameterized stories pass through
// untouched, and a parameterized story with no instances is kept verbatim as
// a template fallback rather than dropped.
//
// Returns the feature unchanged when no story is parameterized, otherwise a
// copy with the new stories list.
func ExpandParameterizedStories(feature *Feature) *Feature {
	hasParam := false
	for _, story := range feature.Stories {
		if story.Parameterized {
			hasParam = true
			break
		}
	}
	if !hasParam {
		return feature
	}

	featCopy := *feature
	var newStories []*Story
	for _, story := range feature.Stories {
		if !story.Parameterized || len(story.DefaultInstances) == 0 {
			newStories = append(newStories, story)
			continue
		}

		for _, instanceName := range story.DefaultInstances {
			storyCopy := *story
			storyCopy.Parameterized = false
			storyCopy.DefaultInstances = nil
			storyCopy.InstanceKey = ""
			storyCopy.Title = replaceName(story.Title, instanceName)
			storyCopy.Description = replaceName(story.Description, instanceName)
			storyCopy.AcceptanceCriteria = replaceName(story.AcceptanceCriteria, instanceName)
			storyCopy.Tasks = copyTasks(story.Tasks, instanceName)
			newStories = append(newStories, &storyCopy)
		}
	}
	featCopy.Stories = newStories
	return &featCopy
}

// ExpandAll expands every parameterized feature and story in the document,
// in place, and returns the document. Story-level expansion runs before
// feature-level expansion so feature instances inherit already-expanded
// stories. Feature order is preserved; each feature's expansion lands at its
// original position among siblings.
func ExpandAll(doc *Document) *Document {
	for _, epic := range doc.Epics {
		var newFeatures []*Feature
		for _, feature := range epic.Features {
			feature = ExpandParameterizedStories(feature)
			newFeatures = append(newFeatures, ExpandParameterized(feature)...)
		}
		epic.Features = newFeatures
	}
	return doc
}

// copyTasks copies a task list with placeholder substitution in descriptions.
func copyTasks(tasks []*Task, instanceName string) []*Task {
	if tasks == nil {
		return nil
	}
	copied := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		taskCopy := *task
		taskCopy.Description = replaceName(task.Description, instanceName)
		copied = append(copied, &taskCopy)
	}
	return copied
}
