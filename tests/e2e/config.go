// Package e2e runs the client, the table endpoint and the SQL compiler
// together against a real SQLite database.
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Seed sizes.
const (
	ActiveClients   = 120
	InactiveClients = 5
)

// Schema creates the tables the suite queries.
const Schema = `
CREATE TABLE IF NOT EXISTS clientes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	nome      TEXT NOT NULL,
	email     TEXT NOT NULL UNIQUE,
	situacao  TEXT NOT NULL,
	cidade    TEXT,
	criado_em TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS configuracoes (
	chave TEXT PRIMARY KEY,
	valor TEXT NOT NULL
);
`

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// DatabasePath returns the SQLite file for the suite. TABLEQUERY_E2E_SQLITE
// overrides the file created under dir.
func DatabasePath(dir string) string {
	return getEnv("TABLEQUERY_E2E_SQLITE", dir+"/e2e.db")
}

// Reset recreates the schema and seeds 120 active and 5 inactive clients.
// Every third active client has no city.
func Reset(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM clientes",
		"DELETE FROM configuracoes",
		"DELETE FROM sqlite_sequence WHERE name = 'clientes'",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO clientes (nome, email, situacao, cidade, criado_em) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for i := 1; i <= ActiveClients+InactiveClients; i++ {
		situacao := "ativo"
		if i > ActiveClients {
			situacao = "inativo"
		}
		var cidade interface{} = "Campinas"
		if i%3 == 0 {
			cidade = nil
		}
		_, err := insert.ExecContext(ctx,
			fmt.Sprintf("Cliente %03d", i),
			fmt.Sprintf("cliente%03d@loja.test", i),
			situacao,
			cidade,
			fmt.Sprintf("2024-01-%02d", i%28+1),
		)
		if err != nil {
			return fmt.Errorf("seed client %d: %w", i, err)
		}
	}
	return tx.Commit()
}
