package commands

import (
	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a table query",
		Long: `Run a query against a table, in process or through --remote.

Examples:
  tablequery query clientes -s id,nome -w situacao=eq.ativo -o nome.asc --limit 50 --count
  tablequery query clientes -w id=eq.7 --single
  tablequery query clientes -X POST -d '{"nome":"Ana"}' --return
  tablequery query configuracoes -X POST -d '[{"chave":"tema","valor":"escuro"}]' --on-conflict chave --resolution merge-duplicates`,
		Args: requireArgs(1, "<table>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			q, err := qf.build(args[0])
			if err != nil {
				return err
			}

			c, err := openClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			resp := c.Run(cmd.Context(), q)
			return printResponse(cmd.OutOrStdout(), resp, q.Columns, qf.asJSON)
		},
	}
	qf.register(cmd)
	return cmd
}
