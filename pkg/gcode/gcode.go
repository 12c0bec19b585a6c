/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gcode rewrites outbound machine commands with pattern rules.
package gcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/settings"
)

// Action is what a matching rule does to the command.
type Action string

const (
	ActionSkip         Action = "skip"
	ActionSkipSuppress Action = "skip/suppress"
	ActionInjectBefore Action = "inject_before"
	ActionInjectAfter  Action = "inject_after"
	ActionReplace      Action = "replace"
	ActionModify       Action = "modify"
)

var (
	// ErrInvalidRule marks a rule set rejected by SetRules.
	ErrInvalidRule = errors.New("invalid gcode rule")

	errPatternRequired = errors.New("rule pattern is required")
	errNoStore         = errors.New("gcode engine has no settings store")
)

// Rule matches the gcode token of a command and rewrites the command.
type Rule struct {
	Enabled     bool   `json:"enabled"`
	Pattern     string `json:"pattern"`
	ActionType  Action `json:"actionType"`
	ActionGcode string `json:"actionGcode"`
}

// Lines splits ActionGcode into its non-blank lines.
func (r Rule) Lines() []string {
	var out []string

	for _, line := range strings.Split(strings.ReplaceAll(r.ActionGcode, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}

	return out
}

// Result is the rewritten command list. Suppressed is set when the command
// must not be sent at all; Commands is then empty.
type Result struct {
	Commands    []string `json:"commands"`
	Suppressed  bool     `json:"suppressed"`
	MatchedRule string   `json:"matched_rule,omitempty"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Engine applies an ordered rule list. The first matching enabled rule wins.
type Engine struct {
	mu          sync.RWMutex
	rules       []Rule
	compiled    []compiledRule
	lastMatched string
	store       *settings.Store
	logger      logger.Logger
}

func NewEngine(store *settings.Store, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Engine{store: store, logger: log}
}

// Load reads the persisted rules. A missing key leaves the engine empty.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	var rules []Rule
	if _, err := e.store.GetJSON(ctx, settings.KeyGcodeRules, &rules); err != nil {
		return fmt.Errorf("load gcode rules: %w", err)
	}

	e.apply(rules)

	e.logger.Info().Int("rules", len(rules)).Msg("Loaded gcode rules")

	return nil
}

// SetRules replaces and persists the rule list.
func (e *Engine) SetRules(ctx context.Context, rules []Rule) error {
	for i, r := range rules {
		if r.Enabled && strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("%w: rule %d: %w", ErrInvalidRule, i, errPatternRequired)
		}
	}

	if rules == nil {
		rules = []Rule{}
	}

	if e.store != nil {
		if err := e.store.PutJSON(ctx, settings.KeyGcodeRules, rules); err != nil {
			return fmt.Errorf("save gcode rules: %w", err)
		}
	}

	e.apply(rules)

	e.logger.Info().Int("rules", len(rules)).Msg("Gcode rules saved")

	return nil
}

// Watch reloads the rules whenever the persisted list changes, including
// writes from another process sharing the settings backend. It returns
// when ctx ends or the backend closes the watch.
func (e *Engine) Watch(ctx context.Context) error {
	if e.store == nil {
		return errNoStore
	}

	updates, err := e.store.Backend().Watch(ctx, settings.KeyGcodeRules)
	if err != nil {
		return fmt.Errorf("watch gcode rules: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}

			e.reload(raw)
		}
	}
}

// reload applies a raw rules value. nil means the key was deleted.
func (e *Engine) reload(raw []byte) {
	var rules []Rule

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rules); err != nil {
			e.logger.Warn().Err(err).Msg("Ignoring malformed gcode rules update")
			return
		}
	}

	e.apply(rules)

	e.logger.Debug().Int("rules", len(rules)).Msg("Reloaded gcode rules")
}

// apply compiles rules. Invalid patterns are logged and kept uncompiled so
// they never match.
func (e *Engine) apply(rules []Rule) {
	compiled := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		cr := compiledRule{Rule: r}

		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				e.logger.Error().Err(err).Str("pattern", r.Pattern).Msg("Invalid gcode rule pattern")
			} else {
				cr.re = re
			}
		}

		compiled = append(compiled, cr)
	}

	e.mu.Lock()
	e.rules = append([]Rule(nil), rules...)
	e.compiled = compiled
	e.mu.Unlock()
}

func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]Rule{}, e.rules...)
}

// LastMatched returns the pattern of the most recent matching rule.
func (e *Engine) LastMatched() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastMatched
}

// Process rewrites cmd, whose gcode token (for example "G28") is matched
// against the rules. An empty token passes cmd through untouched.
func (e *Engine) Process(cmd, token string) Result {
	pass := Result{Commands: []string{cmd}}

	if token == "" {
		return pass
	}

	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	for _, r := range rules {
		if !r.Enabled || r.Pattern == "" || r.re == nil {
			continue
		}

		if !r.re.MatchString(token) {
			continue
		}

		e.mu.Lock()
		e.lastMatched = r.Pattern
		e.mu.Unlock()

		return e.act(r, cmd, token)
	}

	return pass
}

func (e *Engine) act(r compiledRule, cmd, token string) Result {
	lines := r.Lines()
	res := Result{MatchedRule: r.Pattern}

	switch Action(strings.ToLower(string(r.ActionType))) {
	case ActionSkip, ActionSkipSuppress:
		res.Suppressed = true
	case ActionInjectBefore:
		res.Commands = append(lines, cmd)
	case ActionInjectAfter:
		res.Commands = append([]string{cmd}, lines...)
	case ActionReplace, ActionModify:
		if len(lines) == 0 {
			res.Suppressed = true
			break
		}

		res.Commands = lines
	default:
		e.logger.Warn().
			Str("action", string(r.ActionType)).
			Str("pattern", r.Pattern).
			Msg("Unknown gcode rule action, passing command through")

		res.Commands = []string{cmd}

		return res
	}

	e.logger.Debug().
		Str("pattern", r.Pattern).
		Str("gcode", token).
		Strs("commands", res.Commands).
		Bool("suppressed", res.Suppressed).
		Msg("Gcode rule matched")

	return res
}
