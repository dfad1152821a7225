package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentgate-oss/agentgate/internal/backend"
	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/engine"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

var (
	invokeInput   string
	invokeVersion string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <agent-id>",
	Short: "Invoke an agent once from the command line",
	Long: `Run a single invocation against a registered agent without starting
the HTTP server. The input is read from --input or stdin and must be a
JSON object. The full response envelope is printed to stdout.

Examples:
  agentgate invoke summarizer --input '{"text": "..."}'
  cat input.json | agentgate invoke extractor`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&invokeInput, "input", "i", "", "input JSON object (default stdin)")
	invokeCmd.Flags().StringVar(&invokeVersion, "version", "", "exact agent version (default latest)")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var input []byte
	if invokeInput != "" {
		input = []byte(invokeInput)
	} else {
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	logger := telemetry.NewLogger(cfg.Logging.Format, verbose)
	validator := schema.NewValidator()

	store, err := registry.Open(cfg.Storage.Path, validator)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer store.Close()

	record, err := store.Get(args[0], invokeVersion)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("agent not found: %s", args[0])
	}

	sessions, err := memory.NewSQLiteSessionStore(cfg.Storage.SessionPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	eng := engine.New(validator, backend.New(cfg.Backend, logger), sessions, telemetry.NewMetrics(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A bare input object is wrapped; a full request body with an
	// "input" key passes through unchanged.
	body := input
	var decoded map[string]interface{}
	if err := json.Unmarshal(input, &decoded); err == nil {
		if _, hasInput := decoded["input"]; !hasInput {
			body, _ = json.Marshal(map[string]interface{}{"input": decoded})
		}
	}

	status, envelope := eng.Invoke(ctx, record.Definition, body)

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if status >= 400 {
		return fmt.Errorf("invocation failed with status %d", status)
	}
	return nil
}
