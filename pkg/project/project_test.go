// Unit tests for project snapshot persistence
//
// Copyright (C) 2026  Coating Host Project
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterr "coating-host/pkg/errors"
	"coating-host/pkg/pipeline"
	"coating-host/pkg/shape"
	"coating-host/pkg/snippet"
)

func TestParseFullSnapshot(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"name": "panel batch 4",
		"workArea": {"width": 800, "height": 600},
		"shapes": [
			{"id": "s1", "type": "rectangle", "x": 10, "y": 20,
			 "width": 100, "height": 50, "coatingType": "outline"},
			{"id": "m1", "type": "rectangle", "x": 40, "y": 30,
			 "width": 20, "height": 20, "coatingType": "masking"}
		],
		"snippets": [
			{"id": "n1", "name": "park", "hook": "afterAll",
			 "enabled": true, "template": "G0 X0 Y0"}
		]
	}`)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "panel batch 4", p.Name)
	assert.Equal(t, pipeline.WorkArea{Width: 800, Height: 600}, p.WorkArea)
	require.Len(t, p.Shapes, 2)
	assert.Equal(t, shape.CoatingOutline, p.Shapes[0].CoatingType)
	assert.True(t, p.Shapes[1].IsMask())
	require.Len(t, p.Snippets, 1)
	assert.Equal(t, snippet.HookAfterAll, p.Snippets[0].Hook)
}

func TestParseMissingNumericFieldsDecodeAsZero(t *testing.T) {
	p, err := Parse([]byte(`{"shapes": [{"id": "s1", "type": "rectangle", "coatingType": "fill"}]}`))
	require.NoError(t, err)
	require.Len(t, p.Shapes, 1)

	d := p.Shapes[0]
	assert.Zero(t, d.Width)
	assert.Zero(t, d.Height)
	assert.Zero(t, d.LineSpacing)
	// Zero-size geometry converts to nothing rather than failing.
	assert.Empty(t, shape.Convert(d))
}

func TestParseAssignsMissingShapeIDs(t *testing.T) {
	p, err := Parse([]byte(`{"shapes": [
		{"type": "rectangle", "coatingType": "fill"},
		{"type": "circle", "coatingType": "outline"}
	]}`))
	require.NoError(t, err)
	require.Len(t, p.Shapes, 2)
	assert.NotEmpty(t, p.Shapes[0].ID)
	assert.NotEmpty(t, p.Shapes[1].ID)
	assert.NotEqual(t, p.Shapes[0].ID, p.Shapes[1].ID)
}

func TestParseDefaultsVersion(t *testing.T) {
	p, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, p.Version)
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"shapes": [`))
	require.Error(t, err)
	assert.True(t, hosterr.Is(err, hosterr.ErrProjectParse))
	assert.True(t, hosterr.IsFatal(err))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.json")

	src := &Project{
		Name:     "round trip",
		WorkArea: pipeline.WorkArea{Width: 500, Height: 400},
		Shapes: []shape.Descriptor{
			{ID: "s1", Type: shape.KindRectangle, X: 5, Y: 5,
				Width: 90, Height: 40, CoatingType: shape.CoatingFill, LineSpacing: 10},
		},
	}
	require.NoError(t, Save(path, src))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, got.Version)
	assert.Equal(t, src.Name, got.Name)
	assert.Equal(t, src.WorkArea, got.WorkArea)
	assert.Equal(t, src.Shapes, got.Shapes)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.json")
	require.NoError(t, Save(path, &Project{Name: "clean"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "panel.json", entries[0].Name())
}

func TestLoadMergesSnippetLibrary(t *testing.T) {
	dir := t.TempDir()

	lib := &snippet.Library{
		Name: "defaults",
		Snippets: []snippet.Snippet{
			{ID: "lib1", Name: "home", Hook: snippet.HookBeforeAll,
				Enabled: true, Template: "G28"},
		},
	}
	require.NoError(t, snippet.SaveLibrary(filepath.Join(dir, "lib.toml"), lib))

	src := &Project{
		Name:           "with library",
		SnippetLibrary: "lib.toml",
		Snippets: []snippet.Snippet{
			{ID: "inline1", Name: "park", Hook: snippet.HookAfterAll,
				Enabled: true, Template: "G0 X0 Y0"},
		},
	}
	path := filepath.Join(dir, "panel.json")
	require.NoError(t, Save(path, src))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got.Snippets, 2)
	assert.Equal(t, "inline1", got.Snippets[0].ID)
	assert.Equal(t, "lib1", got.Snippets[1].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, hosterr.Is(err, hosterr.ErrProjectParse))
}
