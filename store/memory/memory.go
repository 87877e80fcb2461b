// Package memory provides an in-memory policy.Store for tests and dev.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shebao/policy-engine/policy"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	rules map[triple]policy.Rule

	// FailFinds/FailInserts make the next n calls fail, for exercising
	// the reconciler's store-failure path.
	FailFinds   int
	FailInserts int
}

type triple struct {
	City   string
	Year   int
	Period policy.Period
}

var errInjected = errors.New("injected store failure")

func New() *Memory {
	return &Memory{rules: make(map[triple]policy.Rule)}
}

// FindRule returns the persisted rule for the triple, or (nil, nil).
func (m *Memory) FindRule(_ context.Context, city string, year int, period policy.Period) (*policy.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailFinds > 0 {
		m.FailFinds--
		return nil, errInjected
	}

	if rule, ok := m.rules[triple{city, year, period}]; ok {
		copied := rule
		return &copied, nil
	}
	return nil, nil
}

// InsertRule persists a rule, stamping timestamps the way the SQLite
// store does.
func (m *Memory) InsertRule(_ context.Context, rule policy.Rule) (*policy.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInserts > 0 {
		m.FailInserts--
		return nil, errInjected
	}

	k := triple{rule.City, rule.Year, rule.Period}
	if _, ok := m.rules[k]; ok {
		return nil, policy.ErrRuleExists
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	m.rules[k] = rule

	copied := rule
	return &copied, nil
}

// ListRules returns all rules ordered by year desc, period desc, city asc.
func (m *Memory) ListRules(_ context.Context) ([]policy.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]policy.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Year != rules[j].Year {
			return rules[i].Year > rules[j].Year
		}
		if rules[i].Period != rules[j].Period {
			return rules[i].Period > rules[j].Period
		}
		return rules[i].City < rules[j].City
	})
	return rules, nil
}

// GetRule returns the rule with the given id, or (nil, nil).
func (m *Memory) GetRule(_ context.Context, id string) (*policy.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rules {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

// DeleteRule removes the rule with the given id.
func (m *Memory) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, r := range m.rules {
		if r.ID == id {
			delete(m.rules, k)
			return nil
		}
	}
	return policy.ErrRuleNotFound
}
