package e2e

import (
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func (s *TestSuite) TestInsertUpdateDelete() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Insert(map[string]interface{}{
				"nome":      "Joana Prado",
				"email":     "joana@loja.test",
				"situacao":  "ativo",
				"criado_em": "2024-03-01",
			}).
			Select("id,nome,cidade").
			Single().
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		row := resp.Row()
		s.Require().NotNil(row)
		s.Equal("Joana Prado", row["nome"])
		s.Nil(row["cidade"])
		id := row["id"]
		s.EqualValues(ActiveClients+InactiveClients+1, id)

		resp = c.From("clientes").
			Update(map[string]interface{}{"cidade": "Sorocaba"}).
			Eq("id", id).
			Select("cidade").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().Len(resp.Rows(), 1)
		s.Equal("Sorocaba", resp.Rows()[0]["cidade"])

		resp = c.From("clientes").Delete().Eq("id", id).Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Nil(resp.Data, "no rows without select")

		resp = c.From("clientes").Select("id").Eq("id", id).MaybeSingle().Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Nil(resp.Data)
	})
}

func (s *TestSuite) TestBulkInsertStructs() {
	type novoCliente struct {
		Nome     string `json:"nome"`
		Email    string `json:"email"`
		Situacao string `json:"situacao"`
		CriadoEm string `json:"criado_em"`
	}

	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Insert([]novoCliente{
				{Nome: "Lia", Email: "lia@loja.test", Situacao: "inativo", CriadoEm: "2024-04-01"},
				{Nome: "Rui", Email: "rui@loja.test", Situacao: "inativo", CriadoEm: "2024-04-02"},
			}).
			Select("nome").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Len(resp.Rows(), 2)

		resp = c.From("clientes").
			Select("*", client.SelectOptions{Count: "exact", Head: true}).
			Eq("situacao", "inativo").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().NotNil(resp.Count)
		s.EqualValues(InactiveClients+2, *resp.Count)
	})
}

func (s *TestSuite) TestUpsert() {
	s.clients(func(c *client.Client) {
		resp := c.From("configuracoes").
			Upsert([]map[string]interface{}{
				{"chave": "moeda", "valor": "BRL"},
				{"chave": "fuso", "valor": "America/Sao_Paulo"},
			}, client.UpsertOptions{OnConflict: "chave"}).
			Select("chave,valor").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Len(resp.Rows(), 2)

		resp = c.From("configuracoes").
			Upsert(map[string]interface{}{"chave": "moeda", "valor": "USD"}, client.UpsertOptions{OnConflict: "chave"}).
			Select("valor").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().Len(resp.Rows(), 1)
		s.Equal("USD", resp.Rows()[0]["valor"])

		resp = c.From("configuracoes").
			Upsert(map[string]interface{}{"chave": "moeda", "valor": "EUR"},
				client.UpsertOptions{OnConflict: "chave", IgnoreDuplicates: true}).
			Select("valor").
			Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Empty(resp.Rows(), "ignored duplicates return nothing")

		resp = c.From("configuracoes").Select("valor").Eq("chave", "moeda").Single().Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Equal("USD", resp.Row()["valor"])

		resp = c.From("configuracoes").Select("chave", client.SelectOptions{Count: "exact", Head: true}).Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().NotNil(resp.Count)
		s.EqualValues(2, *resp.Count)
	})
}

func (s *TestSuite) TestConstraintViolation() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Insert(map[string]interface{}{
				"nome":      "Duplicado",
				"email":     "cliente001@loja.test",
				"situacao":  "ativo",
				"criado_em": "2024-05-01",
			}).
			Execute(s.ctx)

		s.Require().NotNil(resp.Error)
		s.True(types.IsConstraintViolation(resp.Error))
		s.Equal("clientes.email", resp.Error.Constraint)
		s.Equal(200, resp.Status)

		resp = c.From("clientes").Select("id", client.SelectOptions{Count: "exact", Head: true}).Execute(s.ctx)
		s.Require().NotNil(resp.Count)
		s.EqualValues(ActiveClients+InactiveClients, *resp.Count, "nothing was written")
	})
}
