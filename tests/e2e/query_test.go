package e2e

import (
	"fmt"
	"math"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func (s *TestSuite) TestActivePageWithCount() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Select("id,nome", client.SelectOptions{Count: ast.CountExact}).
			Eq("situacao", "ativo").
			Order("nome", client.OrderOptions{Ascending: true}).
			Limit(50).
			Execute(s.ctx)

		s.Require().Nil(resp.Error)
		s.Equal(200, resp.Status)
		rows := resp.Rows()
		s.Require().Len(rows, 50)
		s.Equal("Cliente 001", rows[0]["nome"])
		s.Equal("Cliente 050", rows[49]["nome"])
		s.Len(rows[0], 2, "only the selected columns")
		s.Require().NotNil(resp.Count)
		s.EqualValues(ActiveClients, *resp.Count)
	})
}

func (s *TestSuite) TestPagination() {
	s.clients(func(c *client.Client) {
		seen := make(map[string]bool)
		for from := 0; from < ActiveClients; from += 25 {
			resp := c.From("clientes").
				Select("id,nome", client.SelectOptions{Count: ast.CountExact}).
				Eq("situacao", "ativo").
				Order("id").
				Range(from, from+24).
				Execute(s.ctx)

			s.Require().Nil(resp.Error)
			s.Require().NotNil(resp.Count)
			s.EqualValues(ActiveClients, *resp.Count)
			want := 25
			if from+25 > ActiveClients {
				want = ActiveClients - from
			}
			s.Require().Len(resp.Rows(), want)
			s.Equal(fmt.Sprintf("Cliente %03d", from+1), resp.Rows()[0]["nome"])
			for _, row := range resp.Rows() {
				name := row["nome"].(string)
				s.False(seen[name], "page overlap on %s", name)
				seen[name] = true
			}
		}
		s.Len(seen, ActiveClients)
	})
}

func (s *TestSuite) TestDescendingOrder() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Select("nome").
			Order("nome", client.OrderOptions{Ascending: false}).
			Limit(3).
			Execute(s.ctx)

		s.Require().Nil(resp.Error)
		s.Require().Len(resp.Rows(), 3)
		s.Equal("Cliente 125", resp.Rows()[0]["nome"])
		s.Equal("Cliente 123", resp.Rows()[2]["nome"])
	})
}

func (s *TestSuite) TestSingleAndMaybeSingle() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Select("*").Eq("email", "cliente007@loja.test").Single().Execute(s.ctx)
		s.Require().Nil(resp.Error)
		row := resp.Row()
		s.Require().NotNil(row)
		s.Equal("Cliente 007", row["nome"])
		s.EqualValues(7, row["id"])

		resp = c.From("clientes").Select("*").Eq("email", "ninguem@loja.test").Single().Execute(s.ctx)
		s.Require().NotNil(resp.Error)
		s.True(types.IsNotExactlyOneRow(resp.Error))
		s.Equal(200, resp.Status)

		resp = c.From("clientes").Select("*").Eq("email", "ninguem@loja.test").MaybeSingle().Execute(s.ctx)
		s.Nil(resp.Error)
		s.Nil(resp.Data)

		resp = c.From("clientes").Select("*").Eq("situacao", "inativo").MaybeSingle().Execute(s.ctx)
		s.True(resp.IsCode(types.CodeNotExactlyOneRow))
	})
}

func (s *TestSuite) TestFilters() {
	count := func(c *client.Client, build func(b *client.QueryBuilder) *client.QueryBuilder) int {
		resp := build(c.From("clientes").Select("id")).Execute(s.ctx)
		s.Require().Nil(resp.Error)
		return len(resp.Rows())
	}

	s.clients(func(c *client.Client) {
		s.Equal(InactiveClients, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.In("situacao", []string{"inativo", "suspenso"})
		}))
		s.Equal(InactiveClients, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.Not("situacao", "eq", "ativo")
		}))
		s.Equal(9, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.Like("nome", "Cliente 00%")
		}))
		s.Equal(40, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.Eq("situacao", "ativo").Is("cidade", nil)
		}))
		s.Equal(10, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.Gt("id", 10).Lte("id", 20)
		}))
		s.Equal(1, count(c, func(b *client.QueryBuilder) *client.QueryBuilder {
			return b.Match(map[string]interface{}{"situacao": "inativo", "nome": "Cliente 125"})
		}))
	})
}

func (s *TestSuite) TestHeadCount() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").
			Select("*", client.SelectOptions{Count: ast.CountExact, Head: true}).
			Eq("situacao", "inativo").
			Execute(s.ctx)

		s.Require().Nil(resp.Error)
		s.Nil(resp.Data)
		s.Require().NotNil(resp.Count)
		s.EqualValues(InactiveClients, *resp.Count)
	})
}

func (s *TestSuite) TestScanIntoStructs() {
	type cliente struct {
		ID       int64   `db:"id"`
		Nome     string  `db:"nome"`
		Cidade   *string `db:"cidade"`
		Situacao string  `json:"situacao"`
	}

	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Select("id,nome,cidade,situacao").In("id", []int{1, 3}).Order("id").Execute(s.ctx)
		got, err := client.Scan[cliente](resp)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(int64(1), got[0].ID)
		s.Require().NotNil(got[0].Cidade)
		s.Equal("Campinas", *got[0].Cidade)
		s.Nil(got[1].Cidade)
		s.Equal("ativo", got[1].Situacao)
	})
}

func (s *TestSuite) TestLikePatterns() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Select("nome").Like("nome", "Cliente 1_0").Order("nome").Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().Len(resp.Rows(), 3)
		s.Equal("Cliente 100", resp.Rows()[0]["nome"])
		s.Equal("Cliente 120", resp.Rows()[2]["nome"])

		resp = c.From("clientes").Select("nome").Like("nome", "Cliente*1%").Execute(s.ctx)
		s.True(resp.IsCode(types.CodeInvalidPredicate))
		s.Equal(400, resp.Status)
	})
}

func (s *TestSuite) TestRangeToEnd() {
	s.clients(func(c *client.Client) {
		resp := c.From("clientes").Select("nome").Order("id").Range(ActiveClients, math.MaxInt).Execute(s.ctx)
		s.Require().Nil(resp.Error)
		s.Require().Len(resp.Rows(), InactiveClients)
		s.Equal("Cliente 121", resp.Rows()[0]["nome"])
	})
}
