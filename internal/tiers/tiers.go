// Package tiers provides the subscription tier quota policy: how many
// subreddits a tenant may scan, how many posts per day, and the minimum
// acceptable relevance score. Read-only at runtime.
package tiers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier identifies a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierScale   Tier = "scale"
)

// UnlimitedPosts marks a tier without a daily scanned-post cap.
const UnlimitedPosts = -1

// Limits describes what a tier is allowed to consume per hunting cycle.
type Limits struct {
	MaxSubreddits      int  `yaml:"maxSubreddits"`
	PostsPerDay        int  `yaml:"postsPerDay"`
	MinScore           int  `yaml:"minScore"`
	BackgroundHunting  bool `yaml:"backgroundHunting"`
}

// Unlimited reports whether the daily post budget is uncapped.
func (l Limits) Unlimited() bool {
	return l.PostsPerDay == UnlimitedPosts
}

var defaults = map[Tier]Limits{
	TierFree:    {MaxSubreddits: 1, PostsPerDay: 10, MinScore: 7, BackgroundHunting: false},
	TierStarter: {MaxSubreddits: 3, PostsPerDay: 25, MinScore: 6, BackgroundHunting: true},
	TierPro:     {MaxSubreddits: 10, PostsPerDay: 100, MinScore: 5, BackgroundHunting: true},
	TierScale:   {MaxSubreddits: 25, PostsPerDay: UnlimitedPosts, MinScore: 5, BackgroundHunting: true},
}

// Policy resolves tier limits. Unknown tiers resolve to the most restrictive
// tier so a bad subscription value can never widen a tenant's budget.
type Policy struct {
	limits map[Tier]Limits
}

// NewPolicy returns a policy with the built-in defaults.
func NewPolicy() *Policy {
	copied := make(map[Tier]Limits, len(defaults))
	for tier, limits := range defaults {
		copied[tier] = limits
	}
	return &Policy{limits: copied}
}

// NewPolicyFromFile returns a policy with the built-in defaults overridden by
// a YAML file mapping tier name to limits. Missing tiers keep their defaults.
func NewPolicyFromFile(path string) (*Policy, error) {
	policy := NewPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier limits: %w", err)
	}

	overrides := make(map[Tier]Limits)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse tier limits: %w", err)
	}

	for tier, limits := range overrides {
		policy.limits[tier] = limits
	}
	return policy, nil
}

// LimitsFor returns the limits for the given tier, falling back to the free
// tier for unknown values.
func (p *Policy) LimitsFor(tier Tier) Limits {
	if limits, ok := p.limits[tier]; ok {
		return limits
	}
	return p.limits[TierFree]
}
