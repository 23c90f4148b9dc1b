package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/config"
	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
)

// initAnswers are the answers of the init questionnaire.
type initAnswers struct {
	Provider  string
	URL       string
	Addr      string
	AllowList string
	Tables    string
}

const starterAllowList = `# Tables and procedures exposed by "tablequery serve".
# operations: select, insert, update, upsert, delete
# roles: empty admits any authenticated caller
tables:
%s
procedures: {}
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .tablequery.yaml and a starter allow-list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := initAnswers{
				Provider:  "postgresql",
				URL:       "postgres://localhost:5432/app?sslmode=disable",
				Addr:      ":3000",
				AllowList: "allow.yaml",
			}
			if !yes {
				if err := ask(&answers); err != nil {
					return err
				}
			}
			return writeProject(answers)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept the defaults without asking")
	return cmd
}

func ask(a *initAnswers) error {
	questions := []*survey.Question{
		{
			Name: "provider",
			Prompt: &survey.Select{
				Message: "Database:",
				Options: []string{"postgresql", "sqlite"},
				Default: a.Provider,
			},
		},
		{
			Name:     "url",
			Prompt:   &survey.Input{Message: "Connection URL:", Default: a.URL},
			Validate: survey.Required,
		},
		{
			Name:   "addr",
			Prompt: &survey.Input{Message: "Listen address:", Default: a.Addr},
		},
		{
			Name:   "allowlist",
			Prompt: &survey.Input{Message: "Allow-list file:", Default: a.AllowList},
		},
		{
			Name:   "tables",
			Prompt: &survey.Input{Message: "Tables to expose (comma separated):", Help: "Each table starts with select only."},
		},
	}
	return survey.Ask(questions, a)
}

func writeProject(a initAnswers) error {
	const file = config.FileName + ".yaml"
	if _, err := config.AppFs.Stat(file); err == nil {
		return fmt.Errorf("%s already exists", file)
	}

	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Provider: a.Provider, URL: a.URL}
	cfg.Server.Addr = a.Addr
	cfg.Server.AllowList = a.AllowList
	if err := config.SaveConfig(cfg, file); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	ui.PrintSuccess("Created %s", file)

	if a.AllowList != "" {
		if _, err := config.AppFs.Stat(a.AllowList); err == nil {
			ui.PrintWarning("%s already exists, leaving it unchanged", a.AllowList)
		} else {
			doc := fmt.Sprintf(starterAllowList, starterTables(a.Tables))
			if err := afero.WriteFile(config.AppFs, a.AllowList, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", a.AllowList, err)
			}
			ui.PrintSuccess("Created %s", a.AllowList)
		}
	}

	ui.PrintSteps("Next steps",
		"tablequery tables",
		"tablequery query <table> --limit 10",
		"tablequery serve",
	)
	return nil
}
