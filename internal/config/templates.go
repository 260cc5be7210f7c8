package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Mentor Desk Configuration

[storage]
# SQLite database holding rules and trades
path = "~/.config/mentor-desk/mentor.db"

[journal]
# Recompute win/loss/breakeven from the sign of pnl whenever pnl is set.
# When false an explicit status is kept and a mismatch is only logged.
derive_status_from_pnl = true
# Account type for new trades: demo, live, paper
default_source = "demo"
# Mentor id recorded on reviews when none is given
default_mentor_id = ""

[rules]
# Scenario words must be longer than this many characters to count as a match
min_token_length = 3

[log]
# Log level: trace, debug, info, warn, error
level = "info"
# Also write JSON logs to ~/.config/mentor-desk/logs/mentor.log
file = true
max_size = 10
max_backups = 5
max_age = 30

[audit]
# Record every rule and trade change as JSON lines
enabled = true
log_dir = "~/.config/mentor-desk/audit"

[security]
# Enable read-only mode (blocks all rule and trade changes)
read_only_mode = false
# Reject free text that looks like an injection attempt
strict_validation = true

[ui]
# Enable colored output
color_enabled = true
# Prefix for money amounts
currency_symbol = "$"
# Date format
date_format = "02-Jan-2006"
`

// Template returns the commented default configuration file.
func Template() string {
	return configTemplate
}

func createTemplateConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
