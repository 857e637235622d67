// Package sym defines canonical symbols for warden subsystems and system markers.
// These symbols are stable across log output, CLI, and documentation.
package sym

// Subsystem symbols — each long-lived component of the agent logs under one
// of these so a stream of interleaved output stays scannable.
const (
	Job   = "꩜" // job queue, execution, scheduling
	Cloud = "⇅" // cloud notification and task polling
	Track = "∿" // scalar tracking, conditions, charts
	DB    = "⊔" // database/storage layer
	Watch = "◉" // external process monitoring
)

// Lifecycle symbols.
const (
	Open  = "✿" // graceful startup
	Close = "❀" // graceful shutdown with queue drain
)

// SymbolToName maps glyph strings to their text equivalents.
var SymbolToName = map[string]string{
	Job:   "job",
	Cloud: "cloud",
	Track: "track",
	DB:    "db",
	Watch: "watch",
	Open:  "open",
	Close: "close",
}

// NameToSymbol maps text names to their canonical glyph strings.
var NameToSymbol = map[string]string{
	"job":   Job,
	"cloud": Cloud,
	"track": Track,
	"db":    DB,
	"watch": Watch,
	"open":  Open,
	"close": Close,
}

// Names lists the text names in display order for status output.
var Names = []string{"job", "cloud", "track", "db", "watch", "open", "close"}

// Descriptions provides human-readable explanations for status display.
var Descriptions = map[string]string{
	"job":   "Job queue and execution",
	"cloud": "Cloud notification and task polling",
	"track": "Scalar tracking and conditions",
	"db":    "Database/storage layer",
	"watch": "External process monitoring",
	"open":  "Graceful startup",
	"close": "Graceful shutdown with queue drain",
}
