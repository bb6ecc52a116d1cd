package registry

import (
	"fmt"
	"regexp"
	"strconv"
)

// ReasonTag is a stable, machine-readable validation failure reason.
type ReasonTag string

// Reason tags returned alongside a validation failure.
const (
	ReasonMissing         ReasonTag = "missing"
	ReasonWrongType       ReasonTag = "wrong_type"
	ReasonTooShort        ReasonTag = "too_short"
	ReasonTooLong         ReasonTag = "too_long"
	ReasonPatternMismatch ReasonTag = "pattern_mismatch"
	ReasonOutOfRange      ReasonTag = "out_of_range"
	ReasonNotInEnum       ReasonTag = "not_in_enum"
	ReasonCustomRejected  ReasonTag = "custom_rejected"
)

// ValidationError reports the first Parameter Rule a payload failed.
type ValidationError struct {
	RuleIndex int
	RuleName  string
	Reason    ReasonTag
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %q (index %d): %s", e.RuleName, e.RuleIndex, e.Reason)
}

// Predicate is a named custom constraint evaluated against a raw JSON value
// already decoded into a Go any (string, float64, bool, []any, map[string]any).
type Predicate func(value any) bool

// customPredicates is the fixed, named set registered at startup. Additional
// predicates are added here, never accepted from configuration.
var customPredicates = map[string]Predicate{
	"hex-32-bytes":          isHex32Bytes,
	"shielded-address-kind": isShieldedAddressKind,
	"positive-amount":       isPositiveAmount,
}

func isHex32Bytes(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return hex32Pattern.MatchString(s)
}

var hex32Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func isShieldedAddressKind(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return shieldedAddrPattern.MatchString(s)
}

// shieldedAddrPattern accepts the two configured shielded address variants
// (zs1... Sapling-style, zo... Orchard-style) by prefix and length band.
var shieldedAddrPattern = regexp.MustCompile(`^(zs1[0-9a-z]{73,77}|zo1[0-9a-z]{73,77})$`)

func isPositiveAmount(v any) bool {
	f, ok := v.(float64)
	if !ok {
		return false
	}
	return f > 0
}

// compiledRules mirrors ParamRule with pre-compiled regular expressions, so
// every call avoids recompiling a pattern.
type compiledRules map[string][]compiledRule

type compiledRule struct {
	rule    ParamRule
	pattern *regexp.Regexp
}

var compiled = map[string][]compiledRule{}

// compileValidators precompiles every anchored pattern in the catalog once,
// at registry construction time. It panics on an invalid regular expression
// since the catalog is a compile-time constant.
func compileValidators(methods map[string]MethodDefinition) {
	out := make(map[string][]compiledRule, len(methods))
	for name, m := range methods {
		rules := make([]compiledRule, len(m.Params))
		for i, p := range m.Params {
			cr := compiledRule{rule: p}
			for _, c := range p.Constraints {
				if c.Pattern != "" {
					cr.pattern = regexp.MustCompile(c.Pattern)
					break
				}
			}
			rules[i] = cr
		}
		out[name] = rules
	}
	compiled = out
}

// Validate checks payload (either a positional array or a named mapping)
// against m's Parameter Rules, in index order, short-circuiting at the
// first failure.
func Validate(m MethodDefinition, positional []any, named map[string]any) error {
	rules := compiled[m.Name]
	if rules == nil {
		rules = make([]compiledRule, len(m.Params))
		for i, p := range m.Params {
			rules[i] = compiledRule{rule: p}
		}
	}
	for _, cr := range rules {
		rule := cr.rule
		value, present := slot(rule, positional, named)
		if !present {
			if rule.Required {
				return &ValidationError{RuleIndex: rule.Index, RuleName: rule.Name, Reason: ReasonMissing}
			}
			continue
		}
		if err := validateValue(rule, cr.pattern, value); err != nil {
			return err
		}
	}
	return nil
}

func slot(rule ParamRule, positional []any, named map[string]any) (any, bool) {
	if named != nil {
		v, ok := named[rule.Name]
		return v, ok
	}
	if rule.Index < len(positional) {
		return positional[rule.Index], true
	}
	return nil, false
}

func validateValue(rule ParamRule, pattern *regexp.Regexp, value any) error {
	fail := func(reason ReasonTag) error {
		return &ValidationError{RuleIndex: rule.Index, RuleName: rule.Name, Reason: reason}
	}

	if !matchesType(rule.ParamType, value) {
		return fail(ReasonWrongType)
	}

	for _, c := range rule.Constraints {
		switch {
		case c.MinLength != nil || c.MaxLength != nil:
			n, ok := length(value)
			if !ok {
				return fail(ReasonWrongType)
			}
			if c.MinLength != nil && n < *c.MinLength {
				return fail(ReasonTooShort)
			}
			if c.MaxLength != nil && n > *c.MaxLength {
				return fail(ReasonTooLong)
			}
		case c.Pattern != "":
			s, ok := value.(string)
			if !ok || pattern == nil || !pattern.MatchString(s) {
				return fail(ReasonPatternMismatch)
			}
		case c.MinValue != nil || c.MaxValue != nil:
			f, ok := numeric(value)
			if !ok {
				return fail(ReasonWrongType)
			}
			if c.MinValue != nil && f < *c.MinValue {
				return fail(ReasonOutOfRange)
			}
			if c.MaxValue != nil && f > *c.MaxValue {
				return fail(ReasonOutOfRange)
			}
		case len(c.OneOf) > 0:
			s := fmt.Sprintf("%v", value)
			if f, ok := value.(string); ok {
				s = f
			}
			if !contains(c.OneOf, s) {
				return fail(ReasonNotInEnum)
			}
		case c.Custom != "":
			pred, ok := customPredicates[c.Custom]
			if !ok || !pred(value) {
				return fail(ReasonCustomRejected)
			}
		}
	}
	return nil
}

func matchesType(t ParamType, v any) bool {
	switch t {
	case TypeString, TypeHexString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return false
	}
}

func length(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	default:
		return 0, false
	}
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
