// Project snapshot persistence for the coating host
//
// Copyright (C) 2026  Coating Host Project
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package project loads and saves the editor's project snapshot: the shape
// list, the work area and the snippet set for one coating job. The snapshot
// is plain JSON so the external editor can produce it directly.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	hosterr "coating-host/pkg/errors"
	"coating-host/pkg/pipeline"
	"coating-host/pkg/shape"
	"coating-host/pkg/snippet"
)

// CurrentVersion is the snapshot format version written by Save.
const CurrentVersion = 1

// Project is one editor snapshot. Numeric fields missing from the JSON
// decode as zero and are handled downstream by the generators; parsing never
// fails on missing values, only on malformed JSON.
type Project struct {
	Version int    `json:"version"`
	Name    string `json:"name"`

	WorkArea pipeline.WorkArea  `json:"workArea"`
	Shapes   []shape.Descriptor `json:"shapes"`

	// Snippets are inline snippet definitions. SnippetLibrary optionally
	// names a TOML library file to merge in at load time.
	Snippets       []snippet.Snippet `json:"snippets,omitempty"`
	SnippetLibrary string            `json:"snippetLibrary,omitempty"`

	SavedAt string `json:"savedAt,omitempty"`
}

// Parse decodes a snapshot from raw JSON. Shapes without an id are assigned
// one so that downstream error reporting and path grouping always have a
// stable key.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, hosterr.Wrap(err, hosterr.ErrProjectParse, "malformed project JSON")
	}
	if p.Version == 0 {
		p.Version = CurrentVersion
	}
	for i := range p.Shapes {
		if p.Shapes[i].ID == "" {
			p.Shapes[i].ID = uuid.NewString()
		}
	}
	return &p, nil
}

// Load reads a snapshot file. If the snapshot references a snippet library,
// the library's snippets are appended to the inline set; inline snippets
// keep priority through their lower slice positions.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hosterr.ProjectParseError(path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, hosterr.ProjectParseError(path, err)
	}

	if p.SnippetLibrary != "" {
		libPath := p.SnippetLibrary
		if !filepath.IsAbs(libPath) {
			libPath = filepath.Join(filepath.Dir(path), libPath)
		}
		lib, err := snippet.LoadLibrary(libPath)
		if err != nil {
			return nil, err
		}
		p.Snippets = append(p.Snippets, lib.Snippets...)
	}
	return p, nil
}

// Save writes the snapshot atomically: the JSON is written to a temp file in
// the target directory and renamed over the destination, so a crashed save
// never leaves a truncated project behind.
func Save(path string, p *Project) error {
	if p.Version == 0 {
		p.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return hosterr.StorageError("encode project", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return hosterr.StorageError("create project dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".project-*.json")
	if err != nil {
		return hosterr.StorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return hosterr.StorageError("write project", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return hosterr.StorageError("write project", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return hosterr.StorageError("replace project", err)
	}
	return nil
}
