package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/schema"
)

var (
	agentListAll      bool
	agentListArchived bool
	agentVersion      string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage registered agents",
	Long:  `Commands for inspecting and managing the agent registry.`,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	RunE:  runAgentList,
}

var agentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the full spec of an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentShow,
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register <spec-file>",
	Short: "Register an agent from a YAML spec file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentRegister,
}

var agentArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgentSetArchived(args[0], true)
	},
}

var agentUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Restore an archived agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgentSetArchived(args[0], false)
	},
}

func init() {
	agentListCmd.Flags().BoolVar(&agentListAll, "all", false, "show every version, not only the latest")
	agentListCmd.Flags().BoolVar(&agentListArchived, "archived", false, "include archived agents")
	agentShowCmd.Flags().StringVar(&agentVersion, "version", "", "exact version (default latest)")
	agentArchiveCmd.Flags().StringVar(&agentVersion, "version", "", "exact version (default all versions)")
	agentUnarchiveCmd.Flags().StringVar(&agentVersion, "version", "", "exact version (default all versions)")

	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentRegisterCmd)
	agentCmd.AddCommand(agentArchiveCmd)
	agentCmd.AddCommand(agentUnarchiveCmd)
}

func openRegistry() (*registry.Store, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := registry.Open(cfg.Storage.Path, schema.NewValidator())
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return store, nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	agents, err := store.List(registry.ListFilter{
		LatestOnly:      !agentListAll,
		IncludeArchived: agentListArchived,
	})
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered. Use 'agentgate agent register <spec-file>'.")
		return nil
	}

	fmt.Println("Registered Agents:")
	fmt.Println("------------------")
	for _, a := range agents {
		marker := ""
		if a.Archived {
			marker = " (archived)"
		}
		fmt.Printf("  %s@%s%s\n", a.ID, a.Version, marker)
		fmt.Printf("    Name:      %s\n", a.Name)
		fmt.Printf("    Primitive: %s\n", a.Primitive)
		if a.SupportsMemory {
			fmt.Printf("    Memory:    enabled\n")
		}
		if len(a.Tags) > 0 {
			fmt.Printf("    Tags:      %s\n", strings.Join(a.Tags, ", "))
		}
		fmt.Println()
	}
	return nil
}

func runAgentShow(cmd *cobra.Command, args []string) error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Get(args[0], agentVersion)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("agent not found: %s", args[0])
	}

	out, err := json.MarshalIndent(record.Definition, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runAgentRegister(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read spec file: %w", err)
	}
	var spec map[string]interface{}
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return fmt.Errorf("spec file is not valid YAML: %w", err)
	}

	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	def, err := store.Register(spec)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s@%s\n", def.ID, def.Version)
	return nil
}

func runAgentSetArchived(id string, archived bool) error {
	store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	if archived {
		err = store.Archive(id, agentVersion)
	} else {
		err = store.Unarchive(id, agentVersion)
	}
	if err != nil {
		return err
	}
	if archived {
		fmt.Printf("Archived %s\n", id)
	} else {
		fmt.Printf("Restored %s\n", id)
	}
	return nil
}
