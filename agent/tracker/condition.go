package tracker

import (
	"sync"
	"time"

	"github.com/teranos/warden/condexpr"
	"github.com/teranos/warden/errors"
)

const (
	// DefaultCooldown is the minimum interval between firings of one
	// condition when no explicit cooldown is given.
	DefaultCooldown = 30 * time.Second

	// DefaultMissingValue substitutes for scalars a condition references
	// that have no reported value yet.
	DefaultMissingValue = 1.0
)

// Condition is a compiled predicate over scalar values. It fires when the
// predicate holds for the latest reported values and its cooldown has
// elapsed; firing stamps the cooldown clock.
type Condition struct {
	names        []string
	expr         *condexpr.Compiled
	title        string
	defaultValue float64
	cooldown     time.Duration
	onlyRelevant bool

	mu        sync.Mutex
	lastFired time.Time
}

// ConditionOptions tunes condition registration. The zero value is valid.
type ConditionOptions struct {
	Names        []string      // expected scalar names; must match the names the expression uses
	Title        string        // reported with notifications; defaults to the expression source
	Default      *float64      // substituted for missing scalars; nil means 1
	Cooldown     time.Duration // minimum interval between firings; 0 means 30s
	OnlyRelevant bool          // when firing, report only this condition's scalars
}

// NewCondition compiles source into a predicate over the scalar names the
// expression mentions. When opts.Names is given it must contain exactly the
// names the expression uses; this catches typos between a declared scalar
// list and the expression at registration instead of at evaluation.
func NewCondition(source string, opts ConditionOptions) (*Condition, error) {
	compiled, err := condexpr.Compile(source)
	if err != nil {
		return nil, errors.NewConditionError("compile %q: %v", source, err)
	}
	if len(compiled.Names) == 0 {
		return nil, errors.NewConditionError("expression %q references no scalars", source)
	}
	if len(opts.Names) > 0 {
		if err := verifyNamesMatch(opts.Names, compiled.Names); err != nil {
			return nil, err
		}
	}

	title := opts.Title
	if title == "" {
		title = compiled.Source
	}
	defaultValue := DefaultMissingValue
	if opts.Default != nil {
		defaultValue = *opts.Default
	}
	cooldown := opts.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}

	return &Condition{
		names:        compiled.Names,
		expr:         compiled,
		title:        title,
		defaultValue: defaultValue,
		cooldown:     cooldown,
		onlyRelevant: opts.OnlyRelevant,
	}, nil
}

// Names returns the scalar names the condition evaluates, in the order the
// expression first uses them.
func (c *Condition) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Title returns the display title reported with notifications.
func (c *Condition) Title() string { return c.title }

// Source returns the expression text the condition was compiled from.
func (c *Condition) Source() string { return c.expr.Source }

// OnlyRelevant reports whether updates triggered by this condition should be
// scoped to the condition's own scalars.
func (c *Condition) OnlyRelevant() bool { return c.onlyRelevant }

// references reports whether the condition evaluates the named scalar.
func (c *Condition) references(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

// fire evaluates the predicate against latest, substituting the default for
// missing names. Returns true only when the predicate holds and at least the
// cooldown has passed since the last firing; a true return stamps the clock.
func (c *Condition) fire(latest map[string]float64, now time.Time) bool {
	values := make([]float64, len(c.names))
	for i, name := range c.names {
		if v, ok := latest[name]; ok {
			values[i] = v
		} else {
			values[i] = c.defaultValue
		}
	}

	met, err := c.expr.Eval(values)
	if err != nil || !met {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastFired.IsZero() && now.Sub(c.lastFired) < c.cooldown {
		return false
	}
	c.lastFired = now
	return true
}

func verifyNamesMatch(provided, used []string) error {
	want := make(map[string]bool, len(used))
	for _, name := range used {
		want[name] = true
	}
	seen := make(map[string]bool, len(provided))
	for _, name := range provided {
		if !want[name] {
			return errors.NewConditionError("expression does not use scalar %q", name)
		}
		seen[name] = true
	}
	for _, name := range used {
		if !seen[name] {
			return errors.NewConditionError("expression uses scalar %q missing from names", name)
		}
	}
	return nil
}
