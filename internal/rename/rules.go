// Package rename rewrites parameter names from the training-side naming scheme
// to the inference-side module hierarchy.
package rename

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind selects how a rule matches a key.
type Kind int

const (
	// KindPrefix replaces Match when the key starts with it.
	KindPrefix Kind = iota
	// KindBlock rewrites an indexed block token via a capturing pattern.
	KindBlock
	// KindInfix replaces every dot-bounded occurrence of Match.
	KindInfix
)

func (k Kind) String() string {
	switch k {
	case KindPrefix:
		return "prefix"
	case KindBlock:
		return "block"
	case KindInfix:
		return "infix"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage groups rules that are logically one step of the rewrite.
// Rules in different stages touch disjoint parts of a key.
type Stage int

const (
	StageEmbedding Stage = iota + 1
	StageHead
	StageBlocks
	StageModules
)

// Rule is one pattern/replacement pair.
type Rule struct {
	Name    string
	Stage   Stage
	Kind    Kind
	Match   string
	Replace string

	re *regexp.Regexp
}

// blocks.<N> only at a token boundary: start of key or after a dot.
const blockPattern = `(^|\.)blocks\.(\d+)`

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []Rule {
	rules := []Rule{
		{Name: "token_embedding", Stage: StageEmbedding, Kind: KindPrefix, Match: "token_embedding.", Replace: "_tokenEmbedding."},
		{Name: "wte", Stage: StageEmbedding, Kind: KindPrefix, Match: "wte.", Replace: "_tokenEmbedding."},
		{Name: "lm_head", Stage: StageHead, Kind: KindPrefix, Match: "lm_head.", Replace: "_lmHead."},
		{Name: "blocks", Stage: StageBlocks, Kind: KindBlock, Match: blockPattern, Replace: "${1}block_${2}"},
	}

	infix := [][2]string{
		// attention
		{".attn.", "._attn."},
		{".q_proj.", "._qProj."},
		{".k_proj.", "._kProj."},
		{".v_proj.", "._vProj."},
		{".out_proj.", "._outProj."},
		// feed-forward
		{".mlp.", "._mlp."},
		{".fc1.", "._fc1."},
		{".fc2.", "._fc2."},
		// norms
		{".norm1.", "._norm1."},
		{".norm2.", "._norm2."},
		{".final_norm.", "._finalNorm."},
	}
	for _, p := range infix {
		rules = append(rules, Rule{
			Name:    strings.Trim(p[0], "."),
			Stage:   StageModules,
			Kind:    KindInfix,
			Match:   p[0],
			Replace: p[1],
		})
	}
	return rules
}

// compile prepares the block pattern; other kinds need nothing.
func (r *Rule) compile() error {
	if r.Kind != KindBlock || r.re != nil {
		return nil
	}
	re, err := regexp.Compile(r.Match)
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	r.re = re
	return nil
}

// apply rewrites key and reports whether the rule fired.
func (r *Rule) apply(key string) (string, bool) {
	switch r.Kind {
	case KindPrefix:
		if rest, ok := strings.CutPrefix(key, r.Match); ok {
			return r.Replace + rest, true
		}
	case KindBlock:
		if r.re.MatchString(key) {
			return r.re.ReplaceAllString(key, r.Replace), true
		}
	case KindInfix:
		if !strings.Contains(key, r.Match) {
			return key, false
		}
		// Adjacent fragments share a dot (".attn.attn."), so one pass can leave
		// a fresh match behind. Repeat until none remain.
		for strings.Contains(key, r.Match) {
			key = strings.ReplaceAll(key, r.Match, r.Replace)
		}
		return key, true
	}
	return key, false
}

func (r Rule) String() string {
	return fmt.Sprintf("%-6s %-16q -> %q", r.Kind, r.Match, r.Replace)
}
