// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat provides the conversational fallback for inputs that do not
// invoke a tool or capability. Replies come from a YAML playbook of
// pattern/reply rules, evaluated in order.
package chat

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rule maps an input pattern to a canned reply. Replies may reference
// capture groups from the pattern ($1, $2, ...).
type Rule struct {
	Pattern string `yaml:"pattern"`
	Reply   string `yaml:"reply"`

	re *regexp.Regexp
}

// Playbook is an ordered rule set with a default reply for unmatched input.
type Playbook struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// LoadPlaybook reads and compiles a playbook from a YAML file.
func LoadPlaybook(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook %s: %w", path, err)
	}
	return ParsePlaybook(data)
}

// ParsePlaybook parses and compiles a playbook from YAML bytes.
func ParsePlaybook(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	for i := range pb.Rules {
		re, err := regexp.Compile("(?i)" + pb.Rules[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %d pattern %q: %w", i, pb.Rules[i].Pattern, err)
		}
		pb.Rules[i].re = re
	}
	if pb.Default == "" {
		pb.Default = "I'm not sure how to help with that."
	}
	return &pb, nil
}

// Reply returns the reply for the first matching rule, expanding capture
// references, or the default reply when nothing matches.
func (pb *Playbook) Reply(input string) string {
	for _, rule := range pb.Rules {
		match := rule.re.FindStringSubmatchIndex(input)
		if match == nil {
			continue
		}
		return string(rule.re.ExpandString(nil, rule.Reply, input, match))
	}
	return pb.Default
}
