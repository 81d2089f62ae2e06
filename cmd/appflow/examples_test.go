package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func examplePath(t *testing.T, parts ...string) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join(append([]string{"..", "..", "examples", "rnaseq"}, parts...)...))
	require.NoError(t, err)
	return path
}

func TestBundledExample(t *testing.T) {
	t.Parallel()

	pipeline := examplePath(t, "pipeline.yaml")

	stdout, _, err := runCLI(t, "validate", pipeline, examplePath(t, "apps", "align.yaml"), examplePath(t, "apps", "sort.json"))
	require.NoError(t, err)
	require.Contains(t, stdout, "OK "+pipeline+" (app/pipeline)")

	stdout, _, err = runCLI(t, "inputs", pipeline)
	require.NoError(t, err)
	var inputs map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &inputs))
	require.Equal(t, map[string]map[string]any{
		"fastq":  {"id": "reads", "required": true, "list": true},
		"genome": {"id": "reference", "required": true},
		"gtf":    {"id": "annotation", "required": true},
	}, inputs)

	stdout, _, err = runCLI(t, "graph", pipeline)
	require.NoError(t, err)
	require.Contains(t, stdout, "align -> sort")
	require.Contains(t, stdout, "sort -> count")
	require.Contains(t, stdout, "Order: ")

	stdout, _, err = runCLI(t, "check-job", pipeline, examplePath(t, "job.yaml"))
	require.NoError(t, err)
	require.Contains(t, stdout, "provides the 3 inputs")
}
