package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flowsmith/flowsmith/internal/config"
	"github.com/flowsmith/flowsmith/pkg/app"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (provider: %s, storage: %s)\n",
				cfg.Provider.Kind, cfg.Storage.Backend)
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				base := os.Getenv("XDG_CONFIG_HOME")
				if base == "" {
					home, err := os.UserHomeDir()
					if err != nil {
						return err
					}
					base = filepath.Join(home, ".config")
				}
				path = filepath.Join(base, "flowsmith", "flowsmith.yaml")
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, remove it first or use --output", path)
			}

			answers, err := runInitForm()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(renderConfig(answers)), 0o600); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the configuration")
	return cmd
}

type initAnswers struct {
	listen    string
	provider  string
	model     string
	apiKey    string
	storage   string
	bridgeURL string
}

func runInitForm() (initAnswers, error) {
	a := initAnswers{listen: ":8080", provider: "mock", storage: "file"}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Address the HTTP gateway binds").
				Value(&a.listen),
			huh.NewSelect[string]().
				Title("Model provider").
				Options(
					huh.NewOption("Mock (no external model)", "mock"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("OpenRouter", "openrouter"),
					huh.NewOption("OpenAI-compatible endpoint", "openai-compatible"),
				).
				Value(&a.provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model identifier").
				Placeholder("gpt-4o-mini").
				Value(&a.model),
			huh.NewInput().
				Title("API key").
				Description("Stored as ${FLOWSMITH_API_KEY} unless given here").
				EchoMode(huh.EchoModePassword).
				Value(&a.apiKey),
		).WithHideFunc(func() bool { return a.provider == "mock" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversation storage").
				Options(
					huh.NewOption("JSON files", "file"),
					huh.NewOption("SQLite", "sqlite"),
					huh.NewOption("In-memory only", "none"),
				).
				Value(&a.storage),
			huh.NewInput().
				Title("Workflow bridge URL").
				Description("MCP endpoint of the workflow store, empty to disable").
				Placeholder("http://localhost:9090/mcp").
				Value(&a.bridgeURL),
		),
	)

	if err := form.Run(); err != nil {
		return initAnswers{}, err
	}
	return a, nil
}

// renderConfig produces the YAML document for the collected answers.
// Only sections the user touched are emitted, the rest rely on defaults.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  listen: %q\n\n", a.listen)

	b.WriteString("provider:\n")
	fmt.Fprintf(&b, "  kind: %s\n", a.provider)
	if a.provider != "mock" {
		fmt.Fprintf(&b, "  model: %s\n", a.model)
		if a.apiKey != "" {
			fmt.Fprintf(&b, "  api_key: %s\n", a.apiKey)
		} else {
			b.WriteString("  api_key: ${FLOWSMITH_API_KEY}\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("storage:\n")
	fmt.Fprintf(&b, "  backend: %s\n", a.storage)
	dataDir := app.DefaultDataDir()
	switch a.storage {
	case "file":
		fmt.Fprintf(&b, "  dir: %s\n", filepath.Join(dataDir, "conversations"))
	case "sqlite":
		fmt.Fprintf(&b, "  path: %s\n", filepath.Join(dataDir, "conversations.db"))
	}

	if a.bridgeURL != "" {
		b.WriteString("\nbridge:\n")
		fmt.Fprintf(&b, "  url: %s\n", a.bridgeURL)
	}

	return b.String()
}
