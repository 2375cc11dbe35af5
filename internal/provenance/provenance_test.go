package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAssemble_BuildsEntitiesActivitiesAndChain(t *testing.T) {
	dir := t.TempDir()
	raw := writeTemp(t, dir, "raw.json", `{"a":1}`)
	validated := writeTemp(t, dir, "validated.json", `{"a":1,"valid":true}`)

	assembler := NewAssembler("orchestrator/1.0", "workflow/1.0")
	stages := []StageIO{
		{Name: "collect", Outputs: []string{raw}},
		{Name: "validate", Inputs: []string{raw}, Outputs: []string{validated}},
	}

	doc, err := assembler.Assemble("20260806", stages, nil, nil, nil)
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 2, "expected 2 distinct entities")
	assert.Len(t, doc.Activities, 3, "expected 3 activities (2 stages + workflow)")
	assert.NotEmpty(t, doc.ChainHash, "expected a non-empty chain hash")
	assert.Empty(t, doc.ChainPrevHash, "expected no previous hash for a first cycle")
	assert.NotEmpty(t, doc.Agents, "expected agents to be populated")
}

func TestAssemble_ChainsToPreviousDocument(t *testing.T) {
	dir := t.TempDir()
	raw := writeTemp(t, dir, "raw.json", `{"a":1}`)

	assembler := NewAssembler("orchestrator/1.0", "workflow/1.0")
	prev, err := assembler.Assemble("20260730", []StageIO{{Name: "collect", Outputs: []string{raw}}}, nil, nil, nil)
	require.NoError(t, err)

	current, err := assembler.Assemble("20260806", []StageIO{{Name: "collect", Outputs: []string{raw}}}, prev, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, current.ChainPrevHash, "expected chainPrevHash to be set when a previous document is supplied")
	wantPrevHash, err := hashDocument(prev)
	require.NoError(t, err)
	assert.Equal(t, wantPrevHash, current.ChainPrevHash)
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	raw := writeTemp(t, dir, "raw.json", `{"a":1}`)
	assembler := NewAssembler("orchestrator/1.0", "workflow/1.0")
	doc, err := assembler.Assemble("20260806", []StageIO{{Name: "collect", Outputs: []string{raw}}}, nil, nil, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "provenance", "workflow_20260806.prov.json")
	require.NoError(t, Save(doc, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc.CycleID, loaded.CycleID)
	assert.Equal(t, doc.ChainHash, loaded.ChainHash)
}

func TestAssemble_AddsErrorAndDependencyEntitiesAndAllRelationTypes(t *testing.T) {
	dir := t.TempDir()
	raw := writeTemp(t, dir, "raw.json", `{"a":1}`)
	validated := writeTemp(t, dir, "validated.json", `{"a":1,"valid":true}`)

	assembler := NewAssembler("orchestrator/1.0", "workflow/1.0")
	stages := []StageIO{
		{Name: "collect", Outputs: []string{raw}},
		{Name: "validate", Inputs: []string{raw}, Outputs: []string{validated}},
	}
	errorCounts := ErrorCounts{"NOT_FOUND": 3, "TRANSPORT": 0}
	dependencies := []string{"gofrs/flock"}

	doc, err := assembler.Assemble("20260806", stages, nil, errorCounts, dependencies)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, rel := range doc.Relations {
		seen[rel.Type] = true
	}
	for _, want := range []string{"used", "wasGeneratedBy", "wasDerivedFrom", "wasAttributedTo", "wasAssociatedWith", "wasInformedBy", "wasInfluencedBy"} {
		assert.True(t, seen[want], "expected a %s relation, found none", want)
	}

	foundError, foundDependency := false, false
	for _, e := range doc.Entities {
		if e.ID == "entity:error/NOT_FOUND" {
			foundError = true
		}
		if e.ID == "entity:dependency/gofrs/flock" {
			foundDependency = true
		}
		assert.NotEqual(t, "entity:error/TRANSPORT", e.ID, "zero-count error category should not produce an entity")
	}
	assert.True(t, foundError, "expected a per-category error entity for NOT_FOUND")
	assert.True(t, foundDependency, "expected a per-dependency entity for gofrs/flock")
}

func TestLoad_MissingFileReturnsNilNil(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err, "expected nil error for a missing file")
	assert.Nil(t, doc, "expected nil document for a missing file")
}
