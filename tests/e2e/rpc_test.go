package e2e

import (
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
)

func (s *TestSuite) TestProcedureCall() {
	s.clients(func(c *client.Client) {
		resp := c.RPC(s.ctx, "contar_clientes", map[string]interface{}{"situacao": "inativo"})
		s.Require().Nil(resp.Error)
		row := resp.Row()
		s.Require().NotNil(row)
		s.Equal("inativo", row["situacao"])
		s.EqualValues(InactiveClients, row["total"])

		resp = c.RPC(s.ctx, "contar_clientes", map[string]interface{}{"situacao": "ativo"})
		s.Require().Nil(resp.Error)
		s.EqualValues(ActiveClients, resp.Row()["total"])
	})
}
