package e2e

import (
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func (s *TestSuite) TestInvalidIdentifiers() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes; drop table clientes").Select("*").Execute(s.ctx)
		s.True(resp.IsCode(types.CodeInvalidIdentifier))

		resp = c.From("clientes").Select("nome, email--").Execute(s.ctx)
		s.True(resp.IsCode(types.CodeInvalidIdentifier))
		s.Equal(400, resp.Status)

		resp = c.From("clientes").Select("*").Order("nome desc").Execute(s.ctx)
		s.True(resp.IsCode(types.CodeInvalidIdentifier))
	})
}

func (s *TestSuite) TestUnfilteredMutations() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Delete().Execute(s.ctx)
		s.True(resp.IsCode(types.CodeMissingFilter))

		resp = c.From("clientes").Update(map[string]interface{}{"situacao": "inativo"}).Execute(s.ctx)
		s.True(resp.IsCode(types.CodeMissingFilter))

		resp = c.From("clientes").Select("id", client.SelectOptions{Count: "exact", Head: true}).Eq("situacao", "ativo").Execute(s.ctx)
		s.Require().NotNil(resp.Count)
		s.EqualValues(ActiveClients, *resp.Count)
	})
}

func (s *TestSuite) TestMissingConflictTarget() {
	s.clients(func(c *client.Client) {
		resp := c.From("configuracoes").Upsert(map[string]interface{}{"chave": "moeda", "valor": "BRL"}).Execute(s.ctx)
		s.True(resp.IsCode(types.CodeMissingConflictTarget))
	})
}

func (s *TestSuite) TestInvalidRange() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Select("id").Range(10, 5).Execute(s.ctx)
		s.True(resp.IsCode(types.CodeInvalidRange))
	})
}

func (s *TestSuite) TestBuilderRunsOnce() {
	s.clients(func(c *client.Client) {
		b := c.From("clientes").Select("id").Limit(1)
		s.Nil(b.Execute(s.ctx).Error)

		resp := b.Execute(s.ctx)
		s.True(resp.IsCode(types.CodeAlreadyExecuted))
	})
}
