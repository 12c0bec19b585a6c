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

package gcode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/connectbridge/pkg/kv"
	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/settings"
)

func newEngine(t *testing.T, rules ...Rule) (*Engine, *settings.Store) {
	t.Helper()

	store := settings.New(kv.NewMemoryStore())
	e := NewEngine(store, logger.NewTestLogger())
	require.NoError(t, e.SetRules(context.Background(), rules))

	return e, store
}

func TestProcessActions(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		cmd   string
		token string
		want  []string
		suppr bool
		match string
	}{
		{
			name:  "skip",
			rule:  Rule{Enabled: true, Pattern: "^M300$", ActionType: ActionSkip},
			cmd:   "M300 S440 P200",
			token: "M300",
			suppr: true,
			match: "^M300$",
		},
		{
			name:  "skip/suppress alias",
			rule:  Rule{Enabled: true, Pattern: "M300", ActionType: ActionSkipSuppress},
			cmd:   "M300",
			token: "M300",
			suppr: true,
			match: "M300",
		},
		{
			name:  "inject before",
			rule:  Rule{Enabled: true, Pattern: "G28", ActionType: ActionInjectBefore, ActionGcode: "M117 Homing\n\nM400"},
			cmd:   "G28 X Y",
			token: "G28",
			want:  []string{"M117 Homing", "M400", "G28 X Y"},
			match: "G28",
		},
		{
			name:  "inject after",
			rule:  Rule{Enabled: true, Pattern: "G28", ActionType: ActionInjectAfter, ActionGcode: "M117 Done"},
			cmd:   "G28",
			token: "G28",
			want:  []string{"G28", "M117 Done"},
			match: "G28",
		},
		{
			name:  "replace",
			rule:  Rule{Enabled: true, Pattern: "M104", ActionType: ActionReplace, ActionGcode: "M104 S200"},
			cmd:   "M104 S215",
			token: "M104",
			want:  []string{"M104 S200"},
			match: "M104",
		},
		{
			name:  "modify with empty gcode suppresses",
			rule:  Rule{Enabled: true, Pattern: "M104", ActionType: ActionModify, ActionGcode: "  \n"},
			cmd:   "M104 S215",
			token: "M104",
			suppr: true,
			match: "M104",
		},
		{
			name:  "action is case insensitive",
			rule:  Rule{Enabled: true, Pattern: "M106", ActionType: "SKIP"},
			cmd:   "M106",
			token: "M106",
			suppr: true,
			match: "M106",
		},
		{
			name:  "unknown action passes through",
			rule:  Rule{Enabled: true, Pattern: "G1", ActionType: "explode"},
			cmd:   "G1 X10",
			token: "G1",
			want:  []string{"G1 X10"},
			match: "G1",
		},
		{
			name:  "disabled rule ignored",
			rule:  Rule{Enabled: false, Pattern: "G1", ActionType: ActionSkip},
			cmd:   "G1 X10",
			token: "G1",
			want:  []string{"G1 X10"},
		},
		{
			name:  "no match",
			rule:  Rule{Enabled: true, Pattern: "^M104$", ActionType: ActionSkip},
			cmd:   "G1 X10",
			token: "G1",
			want:  []string{"G1 X10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t, tt.rule)

			res := e.Process(tt.cmd, tt.token)
			assert.Equal(t, tt.suppr, res.Suppressed)
			assert.Equal(t, tt.want, res.Commands)
			assert.Equal(t, tt.match, res.MatchedRule)
			assert.Equal(t, tt.match, e.LastMatched())
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	e, _ := newEngine(t,
		Rule{Enabled: true, Pattern: "G2[89]", ActionType: ActionReplace, ActionGcode: "G28 W"},
		Rule{Enabled: true, Pattern: "G28", ActionType: ActionSkip},
	)

	res := e.Process("G28", "G28")
	assert.False(t, res.Suppressed)
	assert.Equal(t, []string{"G28 W"}, res.Commands)
	assert.Equal(t, "G2[89]", e.LastMatched())
}

func TestInvalidPatternSkipped(t *testing.T) {
	e, _ := newEngine(t,
		Rule{Enabled: true, Pattern: "G28(", ActionType: ActionSkip},
		Rule{Enabled: true, Pattern: "G28", ActionType: ActionInjectAfter, ActionGcode: "M400"},
	)

	res := e.Process("G28", "G28")
	assert.Equal(t, []string{"G28", "M400"}, res.Commands)
	assert.Equal(t, "G28", res.MatchedRule)
}

func TestEmptyTokenPassesThrough(t *testing.T) {
	e, _ := newEngine(t, Rule{Enabled: true, Pattern: ".*", ActionType: ActionSkip})

	res := e.Process("; comment", "")
	assert.Equal(t, []string{"; comment"}, res.Commands)
	assert.Empty(t, e.LastMatched())
}

func TestRulesPersist(t *testing.T) {
	ctx := context.Background()
	rule := Rule{Enabled: true, Pattern: "M300", ActionType: ActionSkip}

	_, store := newEngine(t, rule)

	reloaded := NewEngine(store, logger.NewTestLogger())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []Rule{rule}, reloaded.Rules())
	assert.True(t, reloaded.Process("M300", "M300").Suppressed)
}

func TestLoadWithoutRules(t *testing.T) {
	e := NewEngine(settings.New(kv.NewMemoryStore()), nil)
	require.NoError(t, e.Load(context.Background()))
	assert.Empty(t, e.Rules())
	assert.Equal(t, []string{"G1"}, e.Process("G1", "G1").Commands)
}

func TestSetRulesRequiresPattern(t *testing.T) {
	e := NewEngine(nil, nil)
	err := e.SetRules(context.Background(), []Rule{{Enabled: true, ActionType: ActionSkip}})
	require.ErrorIs(t, err, errPatternRequired)
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	e, store := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- e.Watch(ctx) }()

	external := []Rule{{Enabled: true, Pattern: "^M600$", ActionType: ActionSkip}}
	require.NoError(t, store.PutJSON(context.Background(), settings.KeyGcodeRules, external))

	require.Eventually(t, func() bool {
		return len(e.Rules()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, e.Process("M600", "M600").Suppressed)

	require.NoError(t, store.Backend().Put(context.Background(), settings.KeyGcodeRules, []byte("{not json"), 0))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, e.Rules(), 1)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWatchWithoutStore(t *testing.T) {
	e := NewEngine(nil, logger.NewTestLogger())

	require.ErrorIs(t, e.Watch(context.Background()), errNoStore)
}
