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

package snippet

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	hosterr "coating-host/pkg/errors"
)

// Library is an on-disk collection of snippets, stored as TOML so that the
// templates stay hand-editable.
type Library struct {
	Name     string    `toml:"name,omitempty"`
	Snippets []Snippet `toml:"snippets"`
}

// LoadLibrary reads a snippet library from a TOML file. Snippets with an
// unknown hook are rejected rather than silently dropped, since a typoed
// hook would otherwise lose the block without a trace.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hosterr.Wrap(err, hosterr.ErrSnippet, "read snippet library")
	}
	var lib Library
	if err := toml.Unmarshal(data, &lib); err != nil {
		return nil, hosterr.Wrap(err, hosterr.ErrSnippet, "parse snippet library")
	}
	for _, s := range lib.Snippets {
		if !s.Hook.Valid() {
			return nil, hosterr.New(hosterr.ErrSnippet,
				fmt.Sprintf("snippet %q has unknown hook %q", s.ID, s.Hook))
		}
	}
	return &lib, nil
}

// SaveLibrary writes the library back as TOML.
func SaveLibrary(path string, lib *Library) error {
	data, err := toml.Marshal(lib)
	if err != nil {
		return hosterr.Wrap(err, hosterr.ErrSnippet, "encode snippet library")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return hosterr.Wrap(err, hosterr.ErrSnippet, "write snippet library")
	}
	return nil
}
