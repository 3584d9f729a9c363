package rename

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// Record is one (original, new) pair. Only keys that changed produce a record.
type Record struct {
	From string
	To   string
}

// Result is the outcome of re-keying a collection.
type Result struct {
	Collection *tensor.Collection
	Records    []Record
	Unchanged  int
	// RuleHits counts, per rule name, how many keys the rule rewrote.
	RuleHits map[string]int
}

// Renamed is the number of keys that changed.
func (r *Result) Renamed() int {
	return len(r.Records)
}

// CollisionError reports distinct source keys that rewrite to the same target.
type CollisionError struct {
	Target  string
	Sources []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("rename collision: %s all map to %q", strings.Join(quoteAll(e.Sources), ", "), e.Target)
}

// Rewriter applies an ordered rule list. It holds no mutable state and is safe
// for concurrent use.
type Rewriter struct {
	rules []Rule
}

// New builds a rewriter from DefaultRules.
func New() *Rewriter {
	r, err := NewRewriter(DefaultRules())
	if err != nil {
		// default table is static
		panic(err)
	}
	return r
}

// NewRewriter validates and compiles a custom rule list.
func NewRewriter(rules []Rule) (*Rewriter, error) {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		r := &out[i]
		if r.Match == "" {
			return nil, fmt.Errorf("rule %q: empty match", r.Name)
		}
		if r.Kind == KindInfix {
			if !strings.HasPrefix(r.Match, ".") || !strings.HasSuffix(r.Match, ".") {
				return nil, fmt.Errorf("rule %q: infix match %q must be dot-bounded", r.Name, r.Match)
			}
			if strings.Contains(r.Replace, r.Match) {
				return nil, fmt.Errorf("rule %q: replacement %q re-introduces its match", r.Name, r.Replace)
			}
		}
		if err := r.compile(); err != nil {
			return nil, err
		}
	}
	return &Rewriter{rules: out}, nil
}

// Rules returns a copy of the rule table in evaluation order.
func (rw *Rewriter) Rules() []Rule {
	out := make([]Rule, len(rw.rules))
	copy(out, rw.rules)
	return out
}

// Rewrite maps a key to the target naming scheme. Keys that match no rule are
// returned unchanged.
func (rw *Rewriter) Rewrite(key string) string {
	out, _ := rw.Trace(key)
	return out
}

// Trace is Rewrite that also reports the names of the rules that fired.
func (rw *Rewriter) Trace(key string) (string, []string) {
	var fired []string
	for i := range rw.rules {
		var ok bool
		key, ok = rw.rules[i].apply(key)
		if ok {
			fired = append(fired, rw.rules[i].Name)
		}
	}
	return key, fired
}

// Apply re-keys every entry of src in order. Tensors are shared, not copied.
// Two source keys landing on the same target fail with *CollisionError.
func (rw *Rewriter) Apply(src *tensor.Collection) (*Result, error) {
	res := &Result{
		Collection: tensor.NewCollection(),
		RuleHits:   make(map[string]int),
	}
	res.Collection.Metadata = src.Metadata
	origin := make(map[string]string, src.Len())
	var collision *CollisionError

	src.Range(func(name string, t *tensor.Tensor) bool {
		newName, fired := rw.Trace(name)
		if prev, ok := origin[newName]; ok {
			collision = &CollisionError{Target: newName, Sources: []string{prev, name}}
			return false
		}
		origin[newName] = name
		if err := res.Collection.Add(newName, t); err != nil {
			collision = &CollisionError{Target: newName, Sources: []string{name}}
			return false
		}
		for _, f := range fired {
			res.RuleHits[f]++
		}
		if newName == name {
			res.Unchanged++
		} else {
			res.Records = append(res.Records, Record{From: name, To: newName})
		}
		return true
	})

	if collision != nil {
		return nil, collision
	}
	return res, nil
}

// ConfluenceError describes a key whose rewrite depends on rule order.
type ConfluenceError struct {
	Key      string
	Expected string
	Got      string
	Order    []string
}

func (e *ConfluenceError) Error() string {
	return fmt.Sprintf("rule order %v rewrites %q to %q, default order gives %q", e.Order, e.Key, e.Got, e.Expected)
}

// Confluent checks that the rewrite of every key is independent of rule order.
// Every permutation of stages is tried, and every pair of rules is checked for
// commutation on the corpus and on the corpus rewritten by each single rule.
func (rw *Rewriter) Confluent(keys []string) error {
	want := make([]string, len(keys))
	for i, k := range keys {
		want[i] = rw.Rewrite(k)
	}

	stages := rw.stages()
	var firstErr error
	permute(len(stages), func(perm []int) bool {
		var order []Rule
		for _, p := range perm {
			order = append(order, stages[p]...)
		}
		alt := &Rewriter{rules: order}
		for i, k := range keys {
			if got := alt.Rewrite(k); got != want[i] {
				firstErr = &ConfluenceError{Key: k, Expected: want[i], Got: got, Order: ruleNames(order)}
				return false
			}
		}
		return true
	})
	if firstErr != nil {
		return firstErr
	}

	for i := range rw.rules {
		for j := i + 1; j < len(rw.rules); j++ {
			a, b := &rw.rules[i], &rw.rules[j]
			for _, k := range keys {
				for _, probe := range []string{k, applyRule(a, k), applyRule(b, k)} {
					ab := applyRule(b, applyRule(a, probe))
					ba := applyRule(a, applyRule(b, probe))
					if ab != ba {
						return &ConfluenceError{Key: probe, Expected: ab, Got: ba, Order: []string{b.Name, a.Name}}
					}
				}
			}
		}
	}
	return nil
}

func applyRule(r *Rule, key string) string {
	out, _ := r.apply(key)
	return out
}

func (rw *Rewriter) stages() [][]Rule {
	byStage := make(map[Stage][]Rule)
	var order []Stage
	for _, r := range rw.rules {
		if _, ok := byStage[r.Stage]; !ok {
			order = append(order, r.Stage)
		}
		byStage[r.Stage] = append(byStage[r.Stage], r)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([][]Rule, len(order))
	for i, s := range order {
		out[i] = byStage[s]
	}
	return out
}

// permute visits every permutation of 0..n-1 (Heap's algorithm) until visit
// returns false.
func permute(n int, visit func([]int) bool) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	c := make([]int, n)
	if !visit(perm) {
		return
	}
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[c[i]], perm[i] = perm[i], perm[c[i]]
			}
			if !visit(perm) {
				return
			}
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}

func ruleNames(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
