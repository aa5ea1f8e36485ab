package main

import (
	"fmt"

	"github.com/pegodk/azpm/internal/template"
	"github.com/pegodk/azpm/internal/uploader"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <plan.yaml>",
	Short: "Upload a project plan, creating any work items that do not exist yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := connectClient()
		if err != nil {
			return err
		}

		doc, err := template.Load(args[0])
		if err != nil {
			return err
		}

		if problems := template.Validate(doc); len(problems) > 0 {
			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("template validation failed with %d error(s)", len(problems))
		}

		doc = template.ExpandAll(doc)

		results, err := uploader.Upload(cmd.Context(), client, doc)
		if err != nil {
			return err
		}

		var created, skipped, failed int
		for _, res := range results {
			switch res.Status {
			case "created":
				created++
			case "skipped":
				skipped++
			case "error":
				failed++
				fmt.Printf("error: %s %q: %s\n", res.Type, res.Title, res.Message)
			}
		}
		fmt.Printf("Created %d, skipped %d, failed %d of %d items\n", created, skipped, failed, len(results))
		if failed > 0 {
			return fmt.Errorf("%d item(s) failed to upload", failed)
		}
		return nil
	},
}
