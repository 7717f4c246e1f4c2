// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package action parses the textual command surface into structured actions.
//
// The grammar is deliberately minimal: two case-sensitive prefixes
// ("use tool:" and "use capability:") followed by an identifier and a
// literal JSON object. Anything else is conversational input. Parameters
// are never evaluated, only decoded as JSON.
package action

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/arbiterhq/arbiter/pkg/faults"
)

// Namespace distinguishes the two handler categories.
type Namespace string

const (
	NamespaceTool       Namespace = "tool"
	NamespaceCapability Namespace = "capability"
)

// Title returns the namespace with its first letter capitalized,
// as used in user-facing messages ("Tool 'x' not found.").
func (n Namespace) Title() string {
	switch n {
	case NamespaceTool:
		return "Tool"
	case NamespaceCapability:
		return "Capability"
	default:
		s := string(n)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// Action is a structured request to invoke a named tool or capability.
// Produced only by Parse and consumed exactly once by the dispatcher.
type Action struct {
	Namespace Namespace
	Name      string
	Params    map[string]any
}

var (
	actionPattern = regexp.MustCompile(`(?s)^use (tool|capability):\s*(\w+)\s*(\{.*\})\s*$`)
	prefixPattern = regexp.MustCompile(`^use (tool|capability):`)
)

// Parse extracts an Action from raw input.
//
// It returns (nil, nil) for plain conversational input. If an input matches
// one of the action prefixes but the rest does not form a valid identifier
// plus JSON object, Parse fails closed with a PARSE_FAULT so the caller can
// record the failure instead of silently treating the input as a query.
func Parse(input string) (*Action, error) {
	match := actionPattern.FindStringSubmatch(input)
	if match == nil {
		if prefixPattern.MatchString(input) {
			return nil, faults.New(faults.CodeParseFault, "malformed action syntax", nil).
				WithContext("input", input).
				WithRecoverable(true)
		}
		return nil, nil
	}

	ns := Namespace(match[1])
	name := match[2]
	params, err := decodeParams(match[3])
	if err != nil {
		return nil, faults.New(faults.CodeParseFault, "malformed action parameters", err).
			WithContext("input", input).
			WithRecoverable(true)
	}

	return &Action{Namespace: ns, Name: name, Params: params}, nil
}

// decodeParams decodes exactly one JSON object and rejects trailing content.
func decodeParams(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, faults.New(faults.CodeInvalidInput, "trailing content after parameters", nil)
	}
	return params, nil
}
