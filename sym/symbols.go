// Package sym defines the glyphs dawn prints next to commands and log lines.
// These symbols are stable across CLI help, status output, and logs.
package sym

// Command glyphs.
const (
	Install   = "⊕" // install - register the daily job
	Uninstall = "⊖" // uninstall - remove the job from a backend
	Status    = "◉" // status - liveness, logs, artifacts
	Fire      = "✦" // fire - run the payload now
	AM        = "≡" // am - configuration and system settings
	History   = "⧗" // history - recorded executions
	Logs      = "▤" // logs - log tails
)

// System infrastructure symbols.
const (
	Pulse      = "꩜" // polling scheduler loop
	PulseOpen  = "✿" // scheduler startup
	PulseClose = "❀" // scheduler shutdown
	Native     = "⌘" // launchd backend
	DB         = "⊔" // execution history store
)

// CommandToSymbol maps CLI verbs to their glyphs.
var CommandToSymbol = map[string]string{
	"install":   Install,
	"uninstall": Uninstall,
	"status":    Status,
	"fire":      Fire,
	"am":        AM,
	"history":   History,
	"logs":      Logs,
}

// SymbolToCommand maps glyphs back to CLI verbs.
var SymbolToCommand = map[string]string{
	Install:   "install",
	Uninstall: "uninstall",
	Status:    "status",
	Fire:      "fire",
	AM:        "am",
	History:   "history",
	Logs:      "logs",
}
