package lcmtypes

var primitiveTypes = map[string]bool{
	"int8_t":  true,
	"int16_t": true,
	"int32_t": true,
	"int64_t": true,
	"byte":    true,
	"float":   true,
	"double":  true,
	"string":  true,
	"boolean": true,
}

// dimension describes one array dimension of a member. Variable dimensions name the member
// holding their length.
type dimension struct {
	variable bool
	size     string
}

func fixed(size string) dimension    { return dimension{size: size} }
func variable(size string) dimension { return dimension{variable: true, size: size} }

type member struct {
	name     string
	typeName string
	// child is set for members whose type is another LCM struct.
	child *structDef
	dims  []dimension
}

// structDef is the schema of an LCM struct, enough to compute its fingerprint.
type structDef struct {
	name    string
	members []member
}

func hashUpdate(v int64, c int8) int64 {
	return ((v << 8) ^ (v >> 55)) + int64(c)
}

func hashUpdateString(v int64, s string) int64 {
	v = hashUpdate(v, int8(len(s)))
	for i := 0; i < len(s); i++ {
		v = hashUpdate(v, int8(s[i]))
	}
	return v
}

// baseHash mirrors lcm-gen: the struct name is not hashed, member names always are, and
// member type names only for primitive members.
func (s *structDef) baseHash() int64 {
	v := int64(0x12345678)
	for _, m := range s.members {
		v = hashUpdateString(v, m.name)
		if primitiveTypes[m.typeName] {
			v = hashUpdateString(v, m.typeName)
		}
		v = hashUpdate(v, int8(len(m.dims)))
		for _, d := range m.dims {
			mode := int8(0)
			if d.variable {
				mode = 1
			}
			v = hashUpdate(v, mode)
			v = hashUpdateString(v, d.size)
		}
	}
	return v
}

// hashRecursive adds the fingerprints of nested struct members, breaking cycles, and
// rotates the result left by one bit.
func (s *structDef) hashRecursive(parents []*structDef) uint64 {
	for _, p := range parents {
		if p == s {
			return 0
		}
	}
	parents = append(parents, s)

	hash := uint64(s.baseHash())
	for _, m := range s.members {
		if m.child != nil {
			hash += m.child.hashRecursive(parents)
		}
	}
	return (hash << 1) + ((hash >> 63) & 1)
}

// Fingerprint returns the 64 bit type fingerprint that prefixes every encoded message.
func (s *structDef) Fingerprint() uint64 {
	return s.hashRecursive(nil)
}

var (
	geometryDataDef = &structDef{
		name: "lcmt_viewer_geometry_data",
		members: []member{
			{name: "type", typeName: "int8_t"},
			{name: "position", typeName: "float", dims: []dimension{fixed("3")}},
			{name: "quaternion", typeName: "float", dims: []dimension{fixed("4")}},
			{name: "color", typeName: "float", dims: []dimension{fixed("4")}},
			{name: "string_data", typeName: "string"},
			{name: "num_float_data", typeName: "int32_t"},
			{name: "float_data", typeName: "float", dims: []dimension{variable("num_float_data")}},
		},
	}
	linkDataDef = &structDef{
		name: "lcmt_viewer_link_data",
		members: []member{
			{name: "name", typeName: "string"},
			{name: "robot_num", typeName: "int32_t"},
			{name: "num_geom", typeName: "int32_t"},
			{
				name: "geom", typeName: geometryDataDef.name, child: geometryDataDef,
				dims: []dimension{variable("num_geom")},
			},
		},
	}
	loadRobotDef = &structDef{
		name: "lcmt_viewer_load_robot",
		members: []member{
			{name: "num_links", typeName: "int32_t"},
			{
				name: "link", typeName: linkDataDef.name, child: linkDataDef,
				dims: []dimension{variable("num_links")},
			},
		},
	}
	drawDef = &structDef{
		name: "lcmt_viewer_draw",
		members: []member{
			{name: "timestamp", typeName: "int64_t"},
			{name: "num_links", typeName: "int32_t"},
			{name: "link_name", typeName: "string", dims: []dimension{variable("num_links")}},
			{name: "robot_num", typeName: "int32_t", dims: []dimension{variable("num_links")}},
			{name: "position", typeName: "float", dims: []dimension{variable("num_links"), fixed("3")}},
			{name: "quaternion", typeName: "float", dims: []dimension{variable("num_links"), fixed("4")}},
		},
	}
)

// TypeInfo names an LCM type and its fingerprint.
type TypeInfo struct {
	Name        string
	Fingerprint uint64
}

// Types lists every LCM type this package can encode and decode.
func Types() []TypeInfo {
	defs := []*structDef{geometryDataDef, linkDataDef, loadRobotDef, drawDef}
	infos := make([]TypeInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, TypeInfo{Name: def.name, Fingerprint: def.Fingerprint()})
	}
	return infos
}
