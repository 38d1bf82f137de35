package recon

import "fmt"

// Config selects the policy set the engine starts with.
type Config struct {
	// MatchPolicy is the matching policy name (exact, standard, flexible).
	MatchPolicy string `mapstructure:"match_policy" default:"standard"`
	// ReconciliationPolicy is the discrepancy-grading policy name (standard, flexible).
	ReconciliationPolicy string `mapstructure:"reconciliation_policy" default:"standard"`
	// ResolutionPolicy is the resolution policy name (automatic, manual, rules).
	ResolutionPolicy string `mapstructure:"resolution_policy" default:"automatic"`
}

// MatchPolicyByName maps a configured name to a matching policy.
func MatchPolicyByName(name string) (MatchPolicy, error) {
	switch name {
	case "exact":
		return NewExactPolicy(), nil
	case "standard", "":
		return NewStandardPolicy(), nil
	case "flexible":
		return NewFlexiblePolicy(), nil
	default:
		return nil, fmt.Errorf("unknown match policy %q", name)
	}
}

// ReconciliationPolicyByName maps a configured name to a grading policy.
func ReconciliationPolicyByName(name string) (ReconciliationPolicy, error) {
	switch name {
	case "standard", "":
		return NewStandardReconciliationPolicy(), nil
	case "flexible":
		return NewFlexibleReconciliationPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown reconciliation policy %q", name)
	}
}

// ResolutionPolicyByName maps a configured name to a resolution policy.
func ResolutionPolicyByName(name string) (ResolutionPolicy, error) {
	switch name {
	case "automatic", "":
		return NewAutomaticPolicy(), nil
	case "manual":
		return NewManualOnlyPolicy(), nil
	case "rules":
		return DefaultRuleSet(), nil
	default:
		return nil, fmt.Errorf("unknown resolution policy %q", name)
	}
}

// Apply configures the engine with the policies named in the config.
func (c Config) Apply(e *Engine) error {
	mp, err := MatchPolicyByName(c.MatchPolicy)
	if err != nil {
		return err
	}
	rp, err := ReconciliationPolicyByName(c.ReconciliationPolicy)
	if err != nil {
		return err
	}
	sp, err := ResolutionPolicyByName(c.ResolutionPolicy)
	if err != nil {
		return err
	}
	if err := e.SetMatchPolicy(mp); err != nil {
		return err
	}
	if err := e.SetReconciliationPolicy(rp); err != nil {
		return err
	}
	return e.SetResolutionPolicy(sp)
}
