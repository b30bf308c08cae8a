package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/internal/bake/output"
	"github.com/Faultbox/midgard-lightbake/internal/config"
)

const plaza = `
sky:
  color: [1, 1, 1]
  brightness: 0.5
meshes:
  - name: ground
    quad: {center: [0, 0, 0], u: [2, 0, 0], v: [0, 2, 0]}
    lightmap: {size: [8, 8]}
  - name: crate
    box: {min: [-0.5, -0.5, 0.5], max: [0.5, 0.5, 1.5]}
lights:
  - name: sun
    type: directional
    direction: [0.2, 0, -1]
    color: [1, 1, 1]
    brightness: 2
`

const sceneConfig = `
general:
  build_volumetric: false
radiosity:
  num_indirect_lighting_bounces: 1
output:
  dir: out
`

const overlapping = `
meshes:
  - name: folded
    vertices:
      - {position: [0, 0, 0], uv: [0, 0]}
      - {position: [1, 0, 0], uv: [1, 0]}
      - {position: [0, 1, 0], uv: [0, 1]}
      - {position: [0, 0, 1], uv: [0, 0]}
      - {position: [1, 0, 1], uv: [1, 0]}
      - {position: [0, 1, 1], uv: [0, 1]}
    indices: [0, 1, 2, 3, 4, 5]
    lightmap: {size: [8, 8]}
`

// writeScene places a scene and its directory config in a fresh working
// directory and isolates the user config dir.
func writeScene(t *testing.T, scene, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scene), 0644))
	if cfg != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0644))
	}
	return path
}

func TestSetupNeedsOneScene(t *testing.T) {
	_, _, _, err := setup(nil)
	assert.Error(t, err)
	_, _, _, err = setup([]string{"a.yaml", "b.yaml"})
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	path := writeScene(t, plaza, "")
	assert.NoError(t, cmdInfo([]string{path}))
}

func TestUVCheck(t *testing.T) {
	path := writeScene(t, plaza, "")
	assert.NoError(t, cmdUVCheck([]string{path}))

	path = writeScene(t, overlapping, "")
	assert.ErrorIs(t, cmdUVCheck([]string{path}), errUVProblems)
}

func TestConfigCommandWritesEffectiveConfig(t *testing.T) {
	path := writeScene(t, plaza, sceneConfig)
	out := filepath.Join(filepath.Dir(path), "effective", config.FileName)
	require.NoError(t, cmdConfig([]string{out}))

	cfg, err := config.Load(filepath.Dir(out))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Radiosity.NumBounces)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.False(t, cfg.General.BuildVolumetric)
}

func TestBake(t *testing.T) {
	path := writeScene(t, plaza, sceneConfig)
	require.NoError(t, cmdBake([]string{path}, false))

	outDir := filepath.Join(filepath.Dir(path), "out")
	m, err := output.LoadManifest(filepath.Join(outDir, "manifest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "scene", m.Scene)
	require.Len(t, m.Mappings, 1)
	assert.Equal(t, "ground", m.Mappings[0].Mesh)
	assert.Nil(t, m.Volumetric)
	assert.Contains(t, m.Files, "ground.lmap.zst")

	f, err := os.Open(filepath.Join(outDir, "ground.lmap.zst"))
	require.NoError(t, err)
	defer f.Close()
	sx, sy, samples, err := output.DecodeLightmap(f)
	require.NoError(t, err)
	assert.Equal(t, 8, sx)
	assert.Equal(t, 8, sy)
	assert.Len(t, samples, 64)
}
