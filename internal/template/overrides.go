package template

import "strings"

// InstanceOverride replaces a parameterized node's default instance list with
// caller-supplied values. Keys of the form "Feature.Story" target a
// parameterized story inside a matching feature; plain keys target a
// parameterized feature.
type InstanceOverride struct {
	Key       string
	Instances []string
}

// ParseInstanceOverrides parses raw directives like "Integration=SAP,Salesforce"
// into an ordered override list. Entries without '=' are ignored; values are
// comma-split and trimmed; a repeated key overwrites the earlier entry's
// instances while keeping its original position.
func ParseInstanceOverrides(rawList []string) []InstanceOverride {
	var overrides []InstanceOverride
	for _, item := range rawList {
		key, val, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		parts := strings.Split(val, ",")
		instances := make([]string, 0, len(parts))
		for _, p := range parts {
			instances = append(instances, strings.TrimSpace(p))
		}

		replaced := false
		for i := range overrides {
			if overrides[i].Key == key {
				overrides[i].Instances = instances
				replaced = true
				break
			}
		}
		if !replaced {
			overrides = append(overrides, InstanceOverride{Key: key, Instances: instances})
		}
	}
	return overrides
}

// ApplyInstanceOverrides applies overrides to parameterized features and
// stories across the document.
//
// A dotted key "FeatureKeyword.StoryKeyword" matches features whose title
// contains the feature keyword (case-insensitive), then overwrites
// default_instances on parameterized stories whose instance_key (or title,
// when no key is set) contains the story keyword. A plain key overwrites
// default_instances on parameterized features whose title contains it.
// When several overrides match the same node, the last one wins.
func ApplyInstanceOverrides(doc *Document, overrides []InstanceOverride) {
	for _, epic := range doc.Epics {
		for _, feat := range epic.Features {
			for _, ov := range overrides {
				featKw, storyKw, dotted := strings.Cut(ov.Key, ".")
				if dotted {
					if !strings.Contains(strings.ToLower(feat.Title), strings.ToLower(featKw)) {
						continue
					}
					for _, story := range feat.Stories {
						if !story.Parameterized {
							continue
						}
						matchField := story.InstanceKey
						if matchField == "" {
							matchField = story.Title
						}
						if strings.Contains(strings.ToLower(matchField), strings.ToLower(storyKw)) {
							story.DefaultInstances = ov.Instances
						}
					}
				} else {
					if !feat.Parameterized {
						continue
					}
					if strings.Contains(strings.ToLower(feat.Title), strings.ToLower(ov.Key)) {
						feat.DefaultInstances = ov.Instances
					}
				}
			}
		}
	}
}

// ExcludeFeatures removes features whose titles contain any of the given
// keywords (case-insensitive). A nil or empty keyword list is a no-op.
func ExcludeFeatures(doc *Document, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	for _, epic := range doc.Epics {
		kept := epic.Features[:0]
		for _, feat := range epic.Features {
			excluded := false
			for _, kw := range keywords {
				if strings.Contains(strings.ToLower(feat.Title), strings.ToLower(kw)) {
					excluded = true
					break
				}
			}
			if !excluded {
				kept = append(kept, feat)
			}
		}
		epic.Features = kept
	}
}
