package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLayoutShowDefault(t *testing.T) {
	out, err := run(t, "layout", "show")
	require.NoError(t, err)

	var got layoutSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "lounge", got.ID)
	assert.Equal(t, [2]float64{400, 300}, got.Spawn)
	assert.Equal(t, []seatSummary{{ID: 1, X: 150, Y: 337.5}, {ID: 2, X: 550, Y: 337.5}}, got.Seats)
	assert.Equal(t, 2, got.Obstacles["fireplace"])
	assert.Equal(t, 9, got.Obstacles["table"])
}

func TestLayoutValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
layout:
  id: nook
  name: Nook
  width: 200
  height: 200
  seats:
    - id: 1
      x: 50
      y: 50
`), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("layout:\n  id: \"\"\n"), 0644))

	out, err := run(t, "layout", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good)

	out, err = run(t, "layout", "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 layouts invalid")
	assert.Contains(t, out, "FAIL")
}
