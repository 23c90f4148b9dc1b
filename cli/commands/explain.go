package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
	"github.com/Usantos1/primecamp-ofc-sub009/query/compiler"
	"github.com/Usantos1/primecamp-ofc-sub009/query/optimizer"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	var suggest bool
	cmd := &cobra.Command{
		Use:   "explain <table>",
		Short: "Print the SQL a table query compiles to",
		Long:  "Compile a query without running it. Takes the same flags as query.",
		Args:  requireArgs(1, "<table>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			q, err := qf.build(args[0])
			if err != nil {
				return err
			}
			provider := providerFor(cfg)
			comp, err := compiler.NewCompiler(provider)
			if err != nil {
				return err
			}

			if !q.Head {
				stmt, err := comp.Compile(q)
				if err != nil {
					return err
				}
				if err := ui.PrintSQL(stmt.SQL, stmt.Args); err != nil {
					return fmt.Errorf("render sql: %w", err)
				}
			}
			if q.WantsCount() {
				count, err := comp.CompileCount(q)
				if err != nil {
					return err
				}
				if err := ui.PrintSQL(count.SQL, count.Args); err != nil {
					return fmt.Errorf("render sql: %w", err)
				}
			}
			if suggest {
				printIndexSuggestions(cmd.OutOrStdout(), optimizer.NewOptimizer(provider).SuggestIndexes(q))
			}
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().BoolVar(&suggest, "suggest-indexes", false, "Also print indexes that would serve the query")
	return cmd
}

func printIndexSuggestions(w io.Writer, stmts []string) {
	if len(stmts) == 0 {
		ui.PrintInfo("No index suggestions")
		return
	}
	for _, stmt := range stmts {
		fmt.Fprintln(w, stmt+";")
	}
}
