package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/schema"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that configuration, storage, and backend credentials are properly set up.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("agentgate doctor — checking your environment")
	fmt.Println()
	allOK := true

	fmt.Printf("  Go version: %s ✓\n", runtime.Version())
	fmt.Printf("  Platform:   %s/%s ✓\n", runtime.GOOS, runtime.GOARCH)

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Printf("  Config:     FAILED (%s) ✗\n", err)
		fmt.Println("    → Run 'agentgate init' to create a project")
		fmt.Println()
		fmt.Println("Some checks failed. See above for details.")
		return nil
	}
	fmt.Printf("  Config:     service %q, active agent %q ✓\n", cfg.Service, cfg.ActiveAgent)

	fmt.Printf("  Backend:    %s", cfg.Backend.Name)
	switch cfg.Backend.Name {
	case "stub":
		fmt.Println(" (no credentials needed) ✓")
	default:
		if cfg.Backend.APIKey != "" {
			key := cfg.Backend.APIKey
			fmt.Printf(" key set (***%s) ✓\n", key[max(0, len(key)-4):])
		} else {
			fmt.Println(" key NOT SET ✗")
			fmt.Println("    → Set the backend api_key or its environment variable")
			allOK = false
		}
	}

	store, err := registry.Open(cfg.Storage.Path, schema.NewValidator())
	if err != nil {
		fmt.Printf("  Registry:   FAILED (%s) ✗\n", err)
		allOK = false
	} else {
		count, countErr := store.Count()
		store.Close()
		if countErr != nil {
			fmt.Printf("  Registry:   FAILED (%s) ✗\n", countErr)
			allOK = false
		} else {
			fmt.Printf("  Registry:   %s (%d agents) ✓\n", cfg.Storage.Path, count)
		}
	}

	if info, err := os.Stat(cfg.PresetsDir); err != nil || !info.IsDir() {
		fmt.Printf("  Presets:    %s not found (seeding skipped)\n", cfg.PresetsDir)
	} else {
		fmt.Printf("  Presets:    %s ✓\n", cfg.PresetsDir)
	}

	if cfg.AuthToken == "" {
		fmt.Println("  Auth:       disabled (no token configured)")
	} else {
		fmt.Println("  Auth:       bearer token configured ✓")
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}
	return nil
}
