package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pegodk/azpm/internal/template"
	"github.com/spf13/cobra"
)

var generateFlags struct {
	templatePath string
	projectName  string
	instances    []string
	exclude      []string
	outputPath   string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Expand a parameterized YAML template into a concrete project plan",
	Long: `Expand a parameterized YAML template into a concrete project plan.

Parameterized features and stories are multiplied per instance name, with
{{name}} placeholders substituted. Instance lists come from the template's
default_instances or from --instances overrides; dotted keys such as
'Data Sources.Ingest {{name}}' target a single story.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, err := template.Load(generateFlags.templatePath)
		if err != nil {
			return err
		}

		if generateFlags.projectName != "" && len(doc.Epics) > 0 {
			doc.Epics[0].Title = generateFlags.projectName
		}
		if overrides := template.ParseInstanceOverrides(generateFlags.instances); len(overrides) > 0 {
			template.ApplyInstanceOverrides(doc, overrides)
		}
		if len(generateFlags.exclude) > 0 {
			template.ExcludeFeatures(doc, generateFlags.exclude)
		}

		doc = template.ExpandAll(doc)

		if problems := template.Validate(doc); len(problems) > 0 {
			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("template validation failed with %d error(s)", len(problems))
		}

		outputPath := generateFlags.outputPath
		if outputPath == "" {
			name := "project"
			if len(doc.Epics) > 0 {
				name = doc.Epics[0].Title
			}
			outputPath = filepath.Join(cfg.OutputDir, template.Slugify(name)+".yaml")
		}
		saved, err := template.SaveYAML(doc, outputPath)
		if err != nil {
			return err
		}

		if _, findings, err := template.Lint(saved); err == nil {
			for _, f := range findings {
				fmt.Println(f)
			}
		}

		fmt.Println(strings.Join(template.FormatTree(doc), "\n"))

		epics, features, stories, tasks := template.CountWorkItems(doc)
		storyPoints, estimateHours := template.Totals(doc)
		fmt.Printf("\n%d epics, %d features, %d stories, %d tasks (%g SP, %gh)\n",
			epics, features, stories, tasks, storyPoints, estimateHours)
		fmt.Printf("Saved to %s\n", saved)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateFlags.templatePath, "template", "t", "", "Path to the YAML template (required)")
	generateCmd.Flags().StringVarP(&generateFlags.projectName, "name", "n", "", "Override the title of the template's first epic")
	generateCmd.Flags().StringArrayVarP(&generateFlags.instances, "instances", "i", nil, "Instance override as 'Key=name1,name2' (repeatable)")
	generateCmd.Flags().StringSliceVarP(&generateFlags.exclude, "exclude", "x", nil, "Drop features whose title contains these keywords")
	generateCmd.Flags().StringVarP(&generateFlags.outputPath, "output", "o", "", "Output path (default: <output-dir>/<project-slug>.yaml)")
	_ = generateCmd.MarkFlagRequired("template")
}
