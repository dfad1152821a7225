package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for agentgate.

To load completions:

Bash:
  $ source <(agentgate completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ agentgate completion bash > /etc/bash_completion.d/agentgate
  # macOS:
  $ agentgate completion bash > $(brew --prefix)/etc/bash_completion.d/agentgate

Zsh:
  $ source <(agentgate completion zsh)
  # To load completions for each session, execute once:
  $ agentgate completion zsh > "${fpath[1]}/_agentgate"

Fish:
  $ agentgate completion fish | source
  # To load completions for each session, execute once:
  $ agentgate completion fish > ~/.config/fish/completions/agentgate.fish

PowerShell:
  PS> agentgate completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}
