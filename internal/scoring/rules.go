package scoring

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// RuleSet is the parsed version_config.yaml. Each version entry becomes a
// rule-driven scorer that replaces the built-in of the same name, so strategy
// tuning does not require a rebuild.
type RuleSet struct {
	Versions map[string]*VersionRules `yaml:"versions"`
}

// VersionRules configures one rule-driven scoring version.
type VersionRules struct {
	MinDataBars int             `yaml:"min_data_bars"`
	Disqualify  *DisqualifyRule `yaml:"disqualify"`
	Groups      []*GroupRules   `yaml:"groups"`
}

// DisqualifyRule short-circuits the version to score 0 when its condition
// holds.
type DisqualifyRule struct {
	Condition string `yaml:"condition"`
	Signal    string `yaml:"signal"`

	expr *Expr
}

// GroupRules is one scoring group built from condition rules.
type GroupRules struct {
	Name  string  `yaml:"name"`
	Min   int     `yaml:"min"`
	Max   int     `yaml:"max"`
	Rules []*Rule `yaml:"rules"`
}

// Rule awards Score when Condition holds. Rules sharing an exclusive_group
// tag are tiered: the first match wins and the rest are skipped.
type Rule struct {
	Condition      string `yaml:"condition"`
	Score          int    `yaml:"score"`
	Signal         string `yaml:"signal"`
	ExclusiveGroup string `yaml:"exclusive_group"`

	expr *Expr
}

// LoadRules reads and compiles a rule file. A compile failure anywhere in the
// file fails the load; a half-usable rule set must never reach the engine.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and compiles rule YAML.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	for version, vr := range rs.Versions {
		if err := vr.compile(); err != nil {
			return nil, fmt.Errorf("version %s: %w", version, err)
		}
	}
	return &rs, nil
}

func (vr *VersionRules) compile() error {
	if vr.MinDataBars <= 0 {
		vr.MinDataBars = 60
	}
	if vr.Disqualify != nil {
		expr, err := ParseExpr(vr.Disqualify.Condition)
		if err != nil {
			return fmt.Errorf("disqualify: %w", err)
		}
		vr.Disqualify.expr = expr
		if vr.Disqualify.Signal == "" {
			vr.Disqualify.Signal = "DISQUALIFIED"
		}
	}
	for _, g := range vr.Groups {
		if g.Max <= 0 {
			return fmt.Errorf("group %s: max must be positive", g.Name)
		}
		for _, rule := range g.Rules {
			expr, err := ParseExpr(rule.Condition)
			if err != nil {
				return fmt.Errorf("group %s: %w", g.Name, err)
			}
			rule.expr = expr
		}
	}
	return nil
}

// Scorers builds a scorer per configured version, sorted by version name for
// deterministic registration order.
func (rs *RuleSet) Scorers() []Scorer {
	if rs == nil {
		return nil
	}
	versions := make([]string, 0, len(rs.Versions))
	for v := range rs.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	out := make([]Scorer, 0, len(versions))
	for _, v := range versions {
		out = append(out, rs.Versions[v].toStrategy(v))
	}
	return out
}

func (vr *VersionRules) toStrategy(version string) *strategy {
	s := &strategy{
		version: version,
		minBars: vr.MinDataBars,
	}
	if vr.Disqualify != nil {
		dq := vr.Disqualify
		s.disqualify = func(f *indicator.Frame, _ *Extras) (string, bool) {
			return dq.Signal, dq.expr.Eval(f)
		}
	}
	for _, g := range vr.Groups {
		g := g
		s.groups = append(s.groups, group{
			name: g.Name,
			min:  g.Min,
			max:  g.Max,
			eval: func(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
				return g.apply(f, r)
			},
		})
	}
	return s
}

func (g *GroupRules) apply(f *indicator.Frame, r *ScoreResult) int {
	total := 0
	taken := make(map[string]bool)
	for _, rule := range g.Rules {
		if rule.ExclusiveGroup != "" && taken[rule.ExclusiveGroup] {
			continue
		}
		if rule.expr.Eval(f) {
			total += rule.Score
			if rule.Signal != "" {
				r.addSignal(rule.Signal)
			}
			if rule.ExclusiveGroup != "" {
				taken[rule.ExclusiveGroup] = true
			}
		}
	}
	return total
}
