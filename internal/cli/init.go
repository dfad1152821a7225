package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize a new agentgate project",
	Long: `Initialize a new agentgate project with a default configuration,
a presets directory with a sample agent, and the data directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	projectName := "."
	if len(args) > 0 {
		projectName = args[0]
	}

	if projectName != "." {
		if err := os.MkdirAll(projectName, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	for _, dir := range []string{"presets", "data"} {
		if err := os.MkdirAll(filepath.Join(projectName, dir), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := createGatewayConfig(projectName); err != nil {
		return err
	}
	if err := createSamplePreset(projectName); err != nil {
		return err
	}
	if err := createGitignore(projectName); err != nil {
		return err
	}

	fmt.Printf("Initialized agentgate project in %s\n", projectName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Configure your backend and API key in agentgate.yaml or environment")
	fmt.Println("  2. Add agent specs under presets/")
	fmt.Println("  3. Run 'agentgate serve' to start the gateway")

	return nil
}

func createGatewayConfig(projectDir string) error {
	content := `# agentgate.yaml - Gateway configuration
service: agentgate
host: localhost
port: 4280

# Agent served on the root /invoke endpoint
active_agent: summarizer

# Bearer token; leave empty to disable auth
# auth_token: ${AGENTGATE_AUTH_TOKEN}

cors_origins: "*"

# Model backend: stub | openai | openrouter | anthropic
backend:
  name: stub
  # model: gpt-4o-mini
  # api_key: ${OPENAI_API_KEY}

storage:
  driver: sqlite
  path: data/agentgate.db
  session_path: data/sessions.db

presets_dir: presets

logging:
  level: info
  format: text  # text | json
`
	return writeProjectFile(projectDir, "agentgate.yaml", content)
}

func createSamplePreset(projectDir string) error {
	content := `id: summarizer
version: 0.1.0
name: Summarizer
description: Summarize text into a short summary with bullets.
primitive: transform
supports_memory: true
memory_policy:
  mode: last_n
  max_messages: 6
  max_chars: 4000
tags:
  - text
prompt: |
  You are a precise summarizer. Read the input text and produce a short
  summary plus the key points as bullets. Be faithful to the source and
  do not invent facts.
input_schema:
  type: object
  additionalProperties: false
  required:
    - text
  properties:
    text:
      type: string
      minLength: 1
output_schema:
  type: object
  additionalProperties: false
  required:
    - summary
    - bullets
  properties:
    summary:
      type: string
      title: Short summary
    bullets:
      type: array
      items:
        type: string
        title: Key bullet
`
	return writeProjectFile(projectDir, filepath.Join("presets", "summarizer.yaml"), content)
}

func createGitignore(projectDir string) error {
	content := `data/
*.db
*.log
`
	return writeProjectFile(projectDir, ".gitignore", content)
}

func writeProjectFile(projectDir, name, content string) error {
	path := filepath.Join(projectDir, name)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  %s already exists, skipping\n", name)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
