/*
This file is part of the coating host software suite.

Copyright (C) 2026  Coating Host Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package snippet wraps an emitted coating body with user-authored G-code
// blocks keyed by lifecycle hook, with dotted-path variable substitution.
package snippet

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Hook names the lifecycle position a snippet is injected at.
type Hook string

const (
	HookBeforeAll  Hook = "beforeAll"
	HookBeforeJob  Hook = "beforeJob"
	HookBeforePath Hook = "beforePath"
	HookAfterPath  Hook = "afterPath"
	HookAfterJob   Hook = "afterJob"
	HookAfterAll   Hook = "afterAll"
)

// Valid reports whether the hook is one of the defined lifecycle hooks.
func (h Hook) Valid() bool {
	switch h {
	case HookBeforeAll, HookBeforeJob, HookBeforePath,
		HookAfterPath, HookAfterJob, HookAfterAll:
		return true
	}
	return false
}

// Snippet is one user-authored text block. Authored externally, consumed
// read-only here; the sort key within a hook is Order.
type Snippet struct {
	ID          string `json:"id" toml:"id"`
	Name        string `json:"name" toml:"name"`
	Hook        Hook   `json:"hook" toml:"hook"`
	Enabled     bool   `json:"enabled" toml:"enabled"`
	Order       int    `json:"order" toml:"order"`
	Template    string `json:"template" toml:"template"`
	Description string `json:"description,omitempty" toml:"description,omitempty"`
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.]*)\s*\}\}`)

// Render substitutes {{variable.path}} placeholders by dotted-path lookup
// against the context. Unresolved paths render as the empty string, never
// the literal placeholder and never an error.
func Render(template string, ctx map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		path := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := lookup(ctx, path)
		if !ok {
			return ""
		}
		return formatValue(v)
	})
}

func lookup(ctx map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = ctx
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		// A non-leaf path renders as unresolved.
		return ""
	case string:
		return t
	case float64:
		// Trim float noise so "10" renders as 10, not 10.000000.
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Assemble wraps the coating body with the enabled snippets in lifecycle
// order: beforeAll, beforePath, body, afterPath, afterAll. The beforeJob
// and afterJob hooks are accepted in the data model but not part of the
// default sequence. The result is trimmed of trailing whitespace and
// terminated with exactly one newline.
func Assemble(body string, snippets []Snippet, ctx map[string]any) string {
	byHook := make(map[Hook][]Snippet)
	for _, s := range snippets {
		if s.Enabled {
			byHook[s.Hook] = append(byHook[s.Hook], s)
		}
	}
	for h := range byHook {
		group := byHook[h]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Order < group[j].Order })
	}

	var b strings.Builder
	writeHook := func(h Hook) {
		for _, s := range byHook[h] {
			rendered := strings.TrimRight(Render(s.Template, ctx), " \t\n")
			if rendered == "" {
				continue
			}
			b.WriteString(rendered)
			b.WriteByte('\n')
		}
	}

	writeHook(HookBeforeAll)
	writeHook(HookBeforePath)
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}
	writeHook(HookAfterPath)
	writeHook(HookAfterAll)

	return strings.TrimRight(b.String(), " \t\n") + "\n"
}
