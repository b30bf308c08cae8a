// Package scenefile reads bake scenes described in YAML.
//
// A scene file lists materials, meshes, lights, importance volumes and
// landscapes. Meshes are either explicit vertex/index lists or one of the
// built-in primitives (quad, box). Every mesh with a lightmap block receives
// a texture mapping; the others are volume-lit occluders.
package scenefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// ErrInvalidScene is the sentinel wrapped by every description error. It is
// the same error scene.Prepare reports.
var ErrInvalidScene = scene.ErrInvalidScene

// File is the YAML representation of a scene.
type File struct {
	Name              string         `yaml:"name"`
	Sky               *SkyDef        `yaml:"sky,omitempty"`
	Materials         []MaterialDef  `yaml:"materials,omitempty"`
	Meshes            []MeshDef      `yaml:"meshes,omitempty"`
	Lights            []LightDef     `yaml:"lights,omitempty"`
	ImportanceVolumes []BoxDef       `yaml:"importance_volumes,omitempty"`
	Landscapes        []LandscapeDef `yaml:"landscapes,omitempty"`
}

// Vec3 is an [x, y, z] triple.
type Vec3 [3]float32

func (v Vec3) vec() math.Vec3     { return math.Vec3{X: v[0], Y: v[1], Z: v[2]} }
func (v Vec3) color() math.Color  { return math.Color{R: v[0], G: v[1], B: v[2]} }
func (v Vec3) isZero() bool       { return v == Vec3{} }
func vec2(v [2]float32) math.Vec2 { return math.Vec2{X: v[0], Y: v[1]} }

// SkyDef describes uniform sky lighting.
type SkyDef struct {
	Color                  Vec3    `yaml:"color"`
	Brightness             float32 `yaml:"brightness"`
	LowerHemisphereIsBlack bool    `yaml:"lower_hemisphere_is_black,omitempty"`
}

// MaterialDef describes a material.
type MaterialDef struct {
	Name        string `yaml:"name"`
	Diffuse     Vec3   `yaml:"diffuse"`
	Emissive    Vec3   `yaml:"emissive,omitempty"`
	TwoSided    bool   `yaml:"two_sided,omitempty"`
	Translucent bool   `yaml:"translucent,omitempty"`
	AOMask      bool   `yaml:"ao_mask,omitempty"`
}

// LightmapDef requests a texture mapping.
type LightmapDef struct {
	Size   [2]int `yaml:"size"`
	Padded bool   `yaml:"padded,omitempty"`
}

// BoxDef is an axis-aligned box.
type BoxDef struct {
	Min Vec3 `yaml:"min"`
	Max Vec3 `yaml:"max"`
}

func (b BoxDef) box() math.Box { return math.Box{Min: b.Min.vec(), Max: b.Max.vec()} }

// QuadDef is a quad centered at Center spanned by the half-axes U and V.
type QuadDef struct {
	Center Vec3 `yaml:"center"`
	U      Vec3 `yaml:"u"`
	V      Vec3 `yaml:"v"`
}

// BoxPrimitiveDef is a six-faced box. Inward faces make a closed room.
type BoxPrimitiveDef struct {
	BoxDef `yaml:",inline"`
	Inward bool `yaml:"inward,omitempty"`
}

// VertexDef is an explicit vertex. A zero normal is replaced by the average
// of the adjacent triangle normals, and a missing lightmap UV reuses UV.
type VertexDef struct {
	Position   Vec3        `yaml:"position"`
	Normal     Vec3        `yaml:"normal,omitempty"`
	UV         [2]float32  `yaml:"uv,omitempty"`
	LightmapUV *[2]float32 `yaml:"lightmap_uv,omitempty"`
}

// MeshDef describes one mesh. Exactly one of Quad, Box or Vertices is set.
type MeshDef struct {
	Name string `yaml:"name"`
	// Material names a material; Materials with TriangleMaterials assigns
	// one per triangle.
	Material          string           `yaml:"material,omitempty"`
	Materials         []string         `yaml:"materials,omitempty"`
	TriangleMaterials []int            `yaml:"triangle_materials,omitempty"`
	CastShadow        *bool            `yaml:"cast_shadow,omitempty"`
	Lightmap          *LightmapDef     `yaml:"lightmap,omitempty"`
	Quad              *QuadDef         `yaml:"quad,omitempty"`
	Box               *BoxPrimitiveDef `yaml:"box,omitempty"`
	Vertices          []VertexDef      `yaml:"vertices,omitempty"`
	Indices           []uint32         `yaml:"indices,omitempty"`
}

// Light types.
const (
	LightDirectional = "directional"
	LightPoint       = "point"
	LightSpot        = "spot"
)

// Light mobility.
const (
	// MobilityStatic bakes the light's direct lighting into lightmaps.
	MobilityStatic = "static"
	// MobilityStationary bakes only the light's shadowing.
	MobilityStationary = "stationary"
)

// LightDef describes a light.
type LightDef struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Mobility   string  `yaml:"mobility,omitempty"`
	Color      Vec3    `yaml:"color"`
	Brightness float32 `yaml:"brightness"`
	// CastShadows defaults to true.
	CastShadows          *bool `yaml:"cast_shadows,omitempty"`
	DistanceFieldShadows bool  `yaml:"distance_field_shadows,omitempty"`

	// Directional lights give Direction or Longitude/Latitude of the sun.
	Direction   Vec3     `yaml:"direction,omitempty"`
	Longitude   *float32 `yaml:"longitude,omitempty"`
	Latitude    *float32 `yaml:"latitude,omitempty"`
	SourceAngle float32  `yaml:"source_angle,omitempty"`

	Position          Vec3    `yaml:"position,omitempty"`
	AttenuationRadius float32 `yaml:"attenuation_radius,omitempty"`
	SourceRadius      float32 `yaml:"source_radius,omitempty"`
	FalloffExponent   float32 `yaml:"falloff_exponent,omitempty"`

	InnerConeAngle float32 `yaml:"inner_cone_angle,omitempty"`
	OuterConeAngle float32 `yaml:"outer_cone_angle,omitempty"`
}

// LandscapeDef is a heightfield. Heights are row-major corner heights,
// (Cells[0]+1)×(Cells[1]+1) of them. With Lightmap set the heightfield is
// also added as a lightmapped mesh.
type LandscapeDef struct {
	Name     string       `yaml:"name"`
	Origin   Vec3         `yaml:"origin"`
	CellSize float32      `yaml:"cell_size"`
	Cells    [2]int       `yaml:"cells"`
	Heights  []float32    `yaml:"heights"`
	Material string       `yaml:"material,omitempty"`
	Lightmap *LightmapDef `yaml:"lightmap,omitempty"`
}

// Load reads and builds the scene at path. A file without a name is named
// after its base name.
func Load(path string) (*File, *scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading scene: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	sc, err := f.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", path, err)
	}
	return f, sc, nil
}

// Parse decodes a scene description. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}
	return &f, nil
}

// Save writes f to path.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build converts the description into a scene ready for baking.
func (f *File) Build() (*scene.Scene, error) {
	materials := make(map[string]*scene.Material, len(f.Materials))
	for _, md := range f.Materials {
		if md.Name == "" {
			return nil, fmt.Errorf("%w: material without a name", ErrInvalidScene)
		}
		if _, dup := materials[md.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate material %q", ErrInvalidScene, md.Name)
		}
		materials[md.Name] = &scene.Material{
			Name:        md.Name,
			Diffuse:     md.Diffuse.color(),
			Emissive:    md.Emissive.color(),
			TwoSided:    md.TwoSided,
			Translucent: md.Translucent,
			AOMask:      md.AOMask,
		}
	}
	lookup := func(owner, name string) (*scene.Material, error) {
		if name == "" {
			return scene.DefaultMaterial, nil
		}
		m, ok := materials[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s uses unknown material %q", ErrInvalidScene, owner, name)
		}
		return m, nil
	}

	sc := &scene.Scene{}
	if f.Sky != nil {
		sc.Sky = &scene.SkyLight{
			Color:                  f.Sky.Color.color(),
			Brightness:             f.Sky.Brightness,
			LowerHemisphereIsBlack: f.Sky.LowerHemisphereIsBlack,
		}
	}

	names := make(map[string]bool)
	for _, md := range f.Meshes {
		if md.Name == "" {
			return nil, fmt.Errorf("%w: mesh without a name", ErrInvalidScene)
		}
		if names[md.Name] {
			return nil, fmt.Errorf("%w: duplicate mesh %q", ErrInvalidScene, md.Name)
		}
		names[md.Name] = true
		meshes, err := md.build(lookup)
		if err != nil {
			return nil, err
		}
		sc.AddMesh(meshes...)
	}

	for _, ld := range f.Landscapes {
		l, err := ld.build()
		if err != nil {
			return nil, err
		}
		sc.Landscapes = append(sc.Landscapes, l)
		if ld.Lightmap == nil {
			continue
		}
		mat, err := lookup("landscape "+ld.Name, ld.Material)
		if err != nil {
			return nil, err
		}
		mesh := l.BuildMesh(mat)
		if err := ld.Lightmap.apply(mesh); err != nil {
			return nil, err
		}
		sc.AddMesh(mesh)
	}

	for _, ld := range f.Lights {
		l, err := ld.build()
		if err != nil {
			return nil, err
		}
		sc.AddLight(l)
	}

	for _, b := range f.ImportanceVolumes {
		box := b.box()
		if !box.IsValid() {
			return nil, fmt.Errorf("%w: importance volume %v-%v is empty", ErrInvalidScene, b.Min, b.Max)
		}
		sc.ImportanceVolumes = append(sc.ImportanceVolumes, box)
	}
	return sc, nil
}

func (lm *LightmapDef) apply(mesh *scene.Mesh) error {
	if lm.Size[0] < 1 || lm.Size[1] < 1 {
		return fmt.Errorf("%w: mesh %q lightmap size %dx%d", ErrInvalidScene, mesh.Name, lm.Size[0], lm.Size[1])
	}
	if lm.Padded && (lm.Size[0] < 3 || lm.Size[1] < 3) {
		return fmt.Errorf("%w: padded lightmap of mesh %q needs at least 3x3 texels", ErrInvalidScene, mesh.Name)
	}
	scene.NewTextureMapping(mesh, lm.Size[0], lm.Size[1], lm.Padded)
	return nil
}

func (md *MeshDef) build(lookup func(owner, name string) (*scene.Material, error)) ([]*scene.Mesh, error) {
	set := 0
	for _, ok := range []bool{md.Quad != nil, md.Box != nil, len(md.Vertices) > 0} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: mesh %q needs exactly one of quad, box or vertices", ErrInvalidScene, md.Name)
	}
	owner := "mesh " + md.Name
	mat, err := lookup(owner, md.Material)
	if err != nil {
		return nil, err
	}

	var meshes []*scene.Mesh
	switch {
	case md.Quad != nil:
		if md.Quad.U.vec().Cross(md.Quad.V.vec()).IsNearlyZero(math.KindaSmall) {
			return nil, fmt.Errorf("%w: quad %q has parallel axes", ErrInvalidScene, md.Name)
		}
		meshes = []*scene.Mesh{scene.NewQuad(md.Name, md.Quad.Center.vec(), md.Quad.U.vec(), md.Quad.V.vec(), mat)}
	case md.Box != nil:
		b := md.Box.box()
		if !b.IsValid() {
			return nil, fmt.Errorf("%w: box %q is empty", ErrInvalidScene, md.Name)
		}
		meshes = scene.NewBox(md.Name, b, md.Box.Inward, func(int) *scene.Material { return mat })
	default:
		m, err := md.buildTriangles(mat, lookup)
		if err != nil {
			return nil, err
		}
		meshes = []*scene.Mesh{m}
	}

	for _, m := range meshes {
		if md.CastShadow != nil {
			m.CastShadow = *md.CastShadow
		}
		if md.Lightmap != nil {
			if err := md.Lightmap.apply(m); err != nil {
				return nil, err
			}
		}
	}
	return meshes, nil
}

func (md *MeshDef) buildTriangles(mat *scene.Material, lookup func(owner, name string) (*scene.Material, error)) (*scene.Mesh, error) {
	if len(md.Indices) == 0 || len(md.Indices)%3 != 0 {
		return nil, fmt.Errorf("%w: mesh %q index count %d is not a positive multiple of 3", ErrInvalidScene, md.Name, len(md.Indices))
	}
	for _, idx := range md.Indices {
		if int(idx) >= len(md.Vertices) {
			return nil, fmt.Errorf("%w: mesh %q index %d out of range", ErrInvalidScene, md.Name, idx)
		}
	}

	// Accumulate area-weighted face normals for vertices without one.
	faceNormals := make([]math.Vec3, len(md.Vertices))
	for i := 0; i < len(md.Indices); i += 3 {
		a, b, c := md.Indices[i], md.Indices[i+1], md.Indices[i+2]
		p0, p1, p2 := md.Vertices[a].Position.vec(), md.Vertices[b].Position.vec(), md.Vertices[c].Position.vec()
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range []uint32{a, b, c} {
			faceNormals[idx] = faceNormals[idx].Add(n)
		}
	}

	vertices := make([]scene.Vertex, len(md.Vertices))
	for i, vd := range md.Vertices {
		n := vd.Normal.vec()
		if vd.Normal.isZero() {
			n = faceNormals[i]
		}
		n = n.SafeNormalize()
		if n.IsNearlyZero(math.KindaSmall) {
			n = math.Vec3{Z: 1}
		}
		tx, _ := math.FindBestAxisVectors(n)
		lightmapUV := vd.UV
		if vd.LightmapUV != nil {
			lightmapUV = *vd.LightmapUV
		}
		vertices[i] = scene.Vertex{
			Position:   vd.Position.vec(),
			TangentX:   tx,
			TangentY:   n.Cross(tx),
			TangentZ:   n,
			TextureUV:  vec2(vd.UV),
			LightmapUV: vec2(lightmapUV),
		}
	}

	m := scene.NewMesh(md.Name, vertices, append([]uint32(nil), md.Indices...), mat)
	if len(md.Materials) == 0 {
		if len(md.TriangleMaterials) > 0 {
			return nil, fmt.Errorf("%w: mesh %q assigns triangle materials without a materials list", ErrInvalidScene, md.Name)
		}
		return m, nil
	}
	m.Materials = m.Materials[:0]
	for _, name := range md.Materials {
		mm, err := lookup("mesh "+md.Name, name)
		if err != nil {
			return nil, err
		}
		m.Materials = append(m.Materials, mm)
	}
	if len(md.TriangleMaterials) > 0 {
		if len(md.TriangleMaterials) != len(md.Indices)/3 {
			return nil, fmt.Errorf("%w: mesh %q has %d triangle materials for %d triangles",
				ErrInvalidScene, md.Name, len(md.TriangleMaterials), len(md.Indices)/3)
		}
		for _, mi := range md.TriangleMaterials {
			if mi < 0 || mi >= len(m.Materials) {
				return nil, fmt.Errorf("%w: mesh %q triangle material %d out of range", ErrInvalidScene, md.Name, mi)
			}
		}
		m.TriangleMaterial = append([]int(nil), md.TriangleMaterials...)
	}
	return m, nil
}

func (ld *LandscapeDef) build() (*scene.Landscape, error) {
	cx, cy := ld.Cells[0], ld.Cells[1]
	if cx < 1 || cy < 1 || ld.CellSize <= 0 {
		return nil, fmt.Errorf("%w: landscape %q needs positive cells and cell size", ErrInvalidScene, ld.Name)
	}
	if want := (cx + 1) * (cy + 1); len(ld.Heights) != want {
		return nil, fmt.Errorf("%w: landscape %q has %d heights, want %d", ErrInvalidScene, ld.Name, len(ld.Heights), want)
	}
	return &scene.Landscape{
		Name:     ld.Name,
		Origin:   ld.Origin.vec(),
		CellSize: ld.CellSize,
		CellsX:   cx,
		CellsY:   cy,
		Heights:  append([]float32(nil), ld.Heights...),
	}, nil
}

func (ld *LightDef) build() (scene.Light, error) {
	if ld.Name == "" {
		return nil, fmt.Errorf("%w: light without a name", ErrInvalidScene)
	}
	var flags scene.LightFlags
	if ld.CastShadows == nil || *ld.CastShadows {
		flags |= scene.CastShadows
	}
	switch ld.Mobility {
	case "", MobilityStatic:
		flags |= scene.StaticLighting
	case MobilityStationary:
		flags |= scene.StaticShadowing
		if ld.DistanceFieldShadows {
			flags |= scene.DistanceFieldShadows
		}
	default:
		return nil, fmt.Errorf("%w: light %q has unknown mobility %q", ErrInvalidScene, ld.Name, ld.Mobility)
	}
	guid := scene.ObjectGUID("light", ld.Name)

	switch ld.Type {
	case LightDirectional:
		var l *scene.DirectionalLight
		switch {
		case ld.Longitude != nil && ld.Latitude != nil:
			l = scene.DirectionalLightFromAngles(ld.Name, *ld.Longitude, *ld.Latitude, ld.Color.color(), ld.Brightness)
		case !ld.Direction.isZero():
			l = &scene.DirectionalLight{
				GUID:        guid,
				LightName:   ld.Name,
				Direction:   ld.Direction.vec().Normalize(),
				Color:       ld.Color.color(),
				Brightness:  ld.Brightness,
				SourceAngle: 1,
			}
		default:
			return nil, fmt.Errorf("%w: directional light %q needs a direction or longitude and latitude", ErrInvalidScene, ld.Name)
		}
		if ld.SourceAngle > 0 {
			l.SourceAngle = ld.SourceAngle
		}
		l.LightFlags = flags
		return l, nil

	case LightPoint, LightSpot:
		if ld.AttenuationRadius <= 0 {
			return nil, fmt.Errorf("%w: light %q needs a positive attenuation radius", ErrInvalidScene, ld.Name)
		}
		p := scene.PointLight{
			GUID:              guid,
			LightName:         ld.Name,
			Pos:               ld.Position.vec(),
			Color:             ld.Color.color(),
			Brightness:        ld.Brightness,
			AttenuationRadius: ld.AttenuationRadius,
			EmitterRadius:     ld.SourceRadius,
			FalloffExponent:   ld.FalloffExponent,
			LightFlags:        flags,
		}
		if ld.Type == LightPoint {
			return &p, nil
		}
		if ld.Direction.isZero() || ld.OuterConeAngle <= 0 {
			return nil, fmt.Errorf("%w: spot light %q needs a direction and outer cone angle", ErrInvalidScene, ld.Name)
		}
		return &scene.SpotLight{
			PointLight:     p,
			Direction:      ld.Direction.vec().Normalize(),
			InnerConeAngle: ld.InnerConeAngle,
			OuterConeAngle: ld.OuterConeAngle,
		}, nil
	}
	return nil, fmt.Errorf("%w: light %q has unknown type %q", ErrInvalidScene, ld.Name, ld.Type)
}
