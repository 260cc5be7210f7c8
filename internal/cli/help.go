package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds workflow documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExamplesCmd(app))
	rootCmd.AddCommand(newQuickstartCmd(app))
}

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "Build a checklist",
		commands: []string{
			`mentor rules add buy "Wait for liquidity sweep"       # required rule`,
			`mentor rules add buy "Bullish engulfing" --advisory   # reported only`,
			`mentor rules list buy                                 # numbered checklist`,
			`mentor rules reorder buy <id2> <id1>                  # renumber 1..n`,
		},
	},
	{
		title: "Check a setup before entering",
		commands: []string{
			`mentor rules check buy "Price swept the Asian low"   # approved or rejected`,
			`mentor rules check sell "RSI divergence at resistance"`,
		},
	},
	{
		title: "Journal a trade",
		commands: []string{
			`mentor trades add --pair EURUSD --type buy --entry 1.0850 --sl 1.0820 --notes "..."`,
			`mentor trades close <id> --exit 1.0900 --pnl 50     # status derived from pnl`,
			`mentor trades validate <id>                          # notes against the checklist`,
		},
	},
	{
		title: "Mentor review",
		commands: []string{
			`mentor trades list --status loss --from 2024-05-01  # what went wrong`,
			`mentor trades review <id> --status flagged --notes "Entered before the sweep"`,
			`mentor stats --strategy ict                          # performance by group`,
		},
	},
	{
		title: "Share checklists",
		commands: []string{
			`mentor rules export -o rules.yaml`,
			`mentor rules import rules.yaml --replace`,
		},
	},
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, w := range workflows {
				output.Bold(w.title)
				for _, c := range w.commands {
					output.Printf("  %s\n", output.DimText(c))
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)

			output.Bold("Mentor Desk - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Review the configuration", "A commented config.toml is created on first run.", "mentor config show"},
				{"Write your buy checklist", "Required rules must all be met for a setup to be approved.", `mentor rules add buy "Wait for liquidity sweep"`},
				{"Write your sell checklist", "Advisory rules are reported but never reject a setup.", `mentor rules add sell "Bearish divergence" --advisory`},
				{"Check a setup", "A rule is met when one of its longer words appears in the scenario.", `mentor rules check buy "Price swept liquidity"`},
				{"Journal the trade", "Describe the setup in the notes so it can be validated later.", "mentor trades add --pair EURUSD --type buy --entry 1.0850"},
				{"Close it", "Win, loss or breakeven follows the sign of the P&L.", "mentor trades close <id> --pnl 50"},
				{"Review performance", "Win rate leaves breakeven trades out.", "mentor stats"},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Green("→"), i+1, s.title)
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Important Notes")
			output.Printf("  %s Set security.read_only_mode = true on a shared review machine\n", output.Yellow("⚠"))
			output.Printf("  %s Every rule and trade change is written to the audit log\n", output.Yellow("⚠"))
			return nil
		},
	}
}
