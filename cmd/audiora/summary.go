package main

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/audiora/audiora/internal/app"
	"github.com/audiora/audiora/internal/config"
)

// printStartupSummary renders the configured provider chains and server
// settings as a table on w.
func printStartupSummary(w io.Writer, cfg *config.Config, providers *app.Providers) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Audiora startup summary")
	t.AppendHeader(table.Row{"Setting", "Value"})

	for _, kind := range []string{"translate", "llm", "stt", "tts", "embeddings"} {
		t.AppendRow(table.Row{kind, chainLabel(providers.Chains[kind])})
	}
	t.AppendSeparator()

	database := "in-memory"
	if cfg.Database.PostgresDSN != "" {
		database = "postgres"
	}
	auth := "disabled"
	if cfg.Auth.JWTSecret != "" {
		auth = "jwt"
	}
	t.AppendRow(table.Row{"listen addr", cfg.Server.ListenAddr})
	t.AppendRow(table.Row{"tls", cfg.Server.TLS != nil})
	t.AppendRow(table.Row{"database", database})
	t.AppendRow(table.Row{"auth", auth})
	t.AppendRow(table.Row{"seed files", len(cfg.Catalog.SeedFiles)})
	t.Render()
}

func chainLabel(names []string) string {
	if len(names) == 0 {
		return "(not configured)"
	}
	return strings.Join(names, " → ")
}
