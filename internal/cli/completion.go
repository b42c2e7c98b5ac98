package cli

import "github.com/spf13/cobra"

func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		// Completion must work without a readable config file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Long: `Generate shell completion scripts for learnmap.

To load completions:

Bash:
  $ source <(learnmap completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ learnmap completion bash > /etc/bash_completion.d/learnmap
  # macOS:
  $ learnmap completion bash > $(brew --prefix)/etc/bash_completion.d/learnmap

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ learnmap completion zsh > "${fpath[1]}/_learnmap"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ learnmap completion fish | source

  # To load completions for each session, execute once:
  $ learnmap completion fish > ~/.config/fish/completions/learnmap.fish

PowerShell:
  PS> learnmap completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> learnmap completion powershell > learnmap.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
