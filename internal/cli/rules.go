package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mentor-desk/internal/journal"
	"mentor-desk/internal/models"
	"mentor-desk/internal/rules"
)

// RuleFile is the YAML document read by import and written by export.
type RuleFile struct {
	Rules []models.Rule `yaml:"rules" json:"rules"`
}

// addRulesCommands adds checklist rule commands.
func addRulesCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Buy and sell checklist management",
		Long: `Maintain the buy and sell checklists and test scenarios against them.

Required rules decide whether a scenario is approved. Advisory rules are
checked and reported but never reject a scenario.`,
	}

	cmd.AddCommand(newRulesListCmd(app))
	cmd.AddCommand(newRulesAddCmd(app))
	cmd.AddCommand(newRulesEditCmd(app))
	cmd.AddCommand(newRulesDeleteCmd(app))
	cmd.AddCommand(newRulesReorderCmd(app))
	cmd.AddCommand(newRulesCheckCmd(app))
	cmd.AddCommand(newRulesImportCmd(app))
	cmd.AddCommand(newRulesExportCmd(app))

	rootCmd.AddCommand(cmd)
}

func parseDirectionArg(arg string) (models.Direction, error) {
	d, err := models.ParseDirection(arg)
	if err != nil {
		return "", fmt.Errorf("invalid direction: %w", err)
	}
	return d, nil
}

func newRulesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [buy|sell]",
		Short: "List checklist rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			var d models.Direction
			if len(args) == 1 {
				parsed, err := parseDirectionArg(args[0])
				if err != nil {
					return err
				}
				d = parsed
			}

			list, err := j.Rules.List(ctx, d)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Info("No rules defined yet.")
				output.Dim("Tip: mentor rules add buy \"Wait for liquidity sweep\"")
				return nil
			}
			renderRules(output, list)
			return nil
		}),
	}
	return cmd
}

func renderRules(output *Output, list []models.Rule) {
	table := NewTable(output, "#", "Side", "Kind", "Rule", "ID")
	for _, r := range list {
		kind := r.Kind()
		if r.Required {
			kind = output.Yellow(kind)
		}
		table.AddRow(
			strconv.Itoa(r.OrderNumber),
			strings.ToUpper(string(r.Direction)),
			kind,
			TruncateString(r.Text, 60),
			r.ID,
		)
	}
	table.Render()
}

func newRulesAddCmd(app *App) *cobra.Command {
	var advisory bool
	cmd := &cobra.Command{
		Use:   "add <buy|sell> <text>",
		Short: "Append a rule to a checklist",
		Example: `  mentor rules add buy "Wait for liquidity sweep"
  mentor rules add sell "Bearish divergence on RSI" --advisory`,
		Args: cobra.MinimumNArgs(2),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			d, err := parseDirectionArg(args[0])
			if err != nil {
				return err
			}
			rule, err := j.Rules.Add(ctx, d, strings.Join(args[1:], " "), !advisory)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(rule)
			}
			output.Success("✓ Added %s %s rule #%d (%s)", rule.Kind(), rule.Direction, rule.OrderNumber, rule.ID)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&advisory, "advisory", false, "advisory rule: reported but never rejects a scenario")
	return cmd
}

func newRulesEditCmd(app *App) *cobra.Command {
	var (
		text      string
		direction string
		required  bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a rule's text, side or required flag",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
		var upd rules.RuleUpdate
		if cmd.Flags().Changed("text") {
			upd.Text = &text
		}
		if cmd.Flags().Changed("direction") {
			d, err := parseDirectionArg(direction)
			if err != nil {
				return err
			}
			upd.Direction = &d
		}
		if cmd.Flags().Changed("required") {
			upd.Required = &required
		}
		if upd.Text == nil && upd.Direction == nil && upd.Required == nil {
			return fmt.Errorf("nothing to change: pass --text, --direction or --required")
		}

		rule, err := j.Rules.Update(ctx, args[0], upd)
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.JSON(rule)
		}
		output.Success("✓ Updated rule %s", rule.ID)
		return nil
	})
	cmd.Flags().StringVar(&text, "text", "", "new rule text")
	cmd.Flags().StringVar(&direction, "direction", "", "move the rule to buy or sell")
	cmd.Flags().BoolVar(&required, "required", true, "whether the rule is required")
	return cmd
}

func newRulesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			if err := j.Rules.Delete(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Deleted rule %s", args[0])
			return nil
		}),
	}
}

func newRulesReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <buy|sell> <id>...",
		Short: "Renumber a checklist in the given order",
		Long:  "Renumber a checklist 1..n. Every rule of the side must be listed exactly once.",
		Args:  cobra.MinimumNArgs(2),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			d, err := parseDirectionArg(args[0])
			if err != nil {
				return err
			}
			list, err := j.Rules.Reorder(ctx, d, args[1:])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(list)
			}
			output.Success("✓ Reordered %d %s rules", len(list), d)
			renderRules(output, list)
			return nil
		}),
	}
}

func newRulesCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "check <buy|sell> <scenario>",
		Short:   "Check a scenario against a checklist",
		Example: `  mentor rules check buy "Price swept the Asian low and broke structure"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			d, err := parseDirectionArg(args[0])
			if err != nil {
				return err
			}
			report, err := j.Rules.Check(ctx, d, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			renderReport(output, report)
			return nil
		}),
	}
}

func renderReport(output *Output, report rules.Report) {
	if len(report.Checks) == 0 {
		output.Info("No %s rules defined: scenario approved by default.", report.Direction)
		return
	}

	table := NewTable(output, "#", "Kind", "Rule", "Met", "Matched")
	for _, c := range report.Checks {
		met := output.Red("✗")
		if c.Satisfied {
			met = output.Green("✓")
		}
		table.AddRow(
			strconv.Itoa(c.Rule.OrderNumber),
			c.Rule.Kind(),
			TruncateString(c.Rule.Text, 50),
			met,
			strings.Join(c.Matched, ", "),
		)
	}
	table.Render()
	output.Println()

	if report.Result.Approved() {
		output.Success("✓ %s approved (%d required rules met)", strings.ToUpper(string(report.Direction)), len(report.Result.EvaluatedAgainst))
	} else {
		output.Error("✗ %s rejected: %d required rules not met", strings.ToUpper(string(report.Direction)), len(report.FailedRequired()))
	}
	if missed := report.MissedAdvisory(); len(missed) > 0 {
		output.Warning("⚠ %d advisory rules not met", len(missed))
	}
}

func newRulesImportCmd(app *App) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from a YAML or JSON file",
		Long: `Import checklist rules from a file of the form

  rules:
    - direction: buy
      text: Wait for liquidity sweep
      required: true

Imported rules get new ids and are appended after existing rules, in
orderNumber order. With --replace the existing checklists are discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			file, err := readRuleFile(args[0])
			if err != nil {
				return err
			}
			added, err := j.Rules.Import(ctx, file.Rules, replace)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(added)
			}
			output.Success("✓ Imported %d rules from %s", len(added), args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the existing checklists")
	return cmd
}

// readRuleFile parses a rule file. JSON is a subset of YAML, so one decoder
// reads both.
func readRuleFile(path string) (RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleFile{}, fmt.Errorf("failed to read rule file: %w", err)
	}
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RuleFile{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return file, nil
}

func newRulesExportCmd(app *App) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every rule as YAML",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, j *journal.Journal, output *Output, args []string) error {
			list, err := j.Rules.Export(ctx)
			if err != nil {
				return err
			}
			file := RuleFile{Rules: list}
			if output.IsJSON() && outPath == "" {
				return output.JSON(file)
			}

			data, err := yaml.Marshal(file)
			if err != nil {
				return fmt.Errorf("failed to encode rules: %w", err)
			}
			if outPath == "" {
				output.Printf("%s", data)
				return nil
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			output.Success("✓ Exported %d rules to %s", len(list), outPath)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
