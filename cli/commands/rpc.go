package commands

import (
	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/query/rpc"
)

// NewRPCCommand creates the rpc command.
func NewRPCCommand(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "rpc <name> [json-args]",
		Short: "Call a procedure",
		Long:  "Call a database function with named arguments, or a registered procedure through --remote.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			var raw []byte
			if len(args) == 2 {
				raw = []byte(args[1])
			}
			params, err := rpc.DecodeArgs(raw)
			if err != nil {
				return err
			}

			c, err := openClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			resp := c.RPC(cmd.Context(), args[0], params)
			return printResponse(cmd.OutOrStdout(), resp, nil, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw envelope as JSON")
	return cmd
}
