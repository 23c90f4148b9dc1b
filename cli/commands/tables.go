package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
	"github.com/Usantos1/primecamp-ofc-sub009/server"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(flags *globalFlags) *cobra.Command {
	var allow string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables and procedures the allow-list exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if allow == "" {
				allow = cfg.Server.AllowList
			}
			if allow == "" {
				return fmt.Errorf("no allow-list configured: set server.allow_list or pass --allow-list")
			}
			list, err := server.LoadAllowList(allow)
			if err != nil {
				return err
			}
			tables, procs := policyRows(list.Policy())

			ui.PrintHeader("Allow-list", allow)
			if len(tables) > 0 {
				ui.PrintTable([]string{"Table", "Operations", "Roles"}, tables, plural(len(tables), "table"))
			}
			if len(procs) > 0 {
				ui.PrintTable([]string{"Procedure", "Roles"}, procs, plural(len(procs), "procedure"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&allow, "allow-list", "", "allow-list YAML file")
	return cmd
}

// policyRows renders a policy as sorted table rows.
func policyRows(p *server.Policy) (tables, procs [][]string) {
	for name, rule := range p.Tables {
		tables = append(tables, []string{name, strings.Join(rule.Operations, ", "), roles(rule.Roles)})
	}
	for name, rule := range p.Procedures {
		procs = append(procs, []string{name, roles(rule.Roles)})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i][0] < tables[j][0] })
	sort.Slice(procs, func(i, j int) bool { return procs[i][0] < procs[j][0] })
	return tables, procs
}

func roles(r []string) string {
	if len(r) == 0 {
		return "any"
	}
	return strings.Join(r, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
