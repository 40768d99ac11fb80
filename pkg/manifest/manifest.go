// Package manifest loads and validates the kiln.toml package manifest.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the manifest file kiln looks for at the project root.
const FileName = "kiln.toml"

// Package is the [package] table of the manifest.
type Package struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Edition string `koanf:"edition"`
}

// Profile is one [profile.<name>] table. Field defaults differ per profile;
// see defaultProfiles.
type Profile struct {
	CXXFlags []string `koanf:"cxxflags"`
	LDFlags  []string `koanf:"ldflags"`
	Debug    bool     `koanf:"debug"`
	LTO      bool     `koanf:"lto"`
	CompDB   bool     `koanf:"comp-db"`
	OptLevel int      `koanf:"opt-level"`
}

// SystemDependency is a [dependencies] entry resolved through pkg-config.
// Acquisition of git or path dependencies is outside this tool.
type SystemDependency struct {
	Name    string
	Version string // minimum version, empty means any
}

// Manifest is the fully loaded kiln.toml.
type Manifest struct {
	Path     string // absolute path to kiln.toml
	Package  Package
	Profiles map[string]Profile
	SysDeps  []SystemDependency
}

type fileSchema struct {
	Package      Package              `koanf:"package"`
	Profile      map[string]Profile   `koanf:"profile"`
	Dependencies map[string]depSchema `koanf:"dependencies"`
}

type depSchema struct {
	System  bool   `koanf:"system"`
	Version string `koanf:"version"`
}

func defaultProfiles() map[string]Profile {
	return map[string]Profile{
		"dev":     {Debug: true, OptLevel: 0, CompDB: true},
		"release": {Debug: false, OptLevel: 3, LTO: true},
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(abs), toml.Parser()); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var schema fileSchema
	if err := k.Unmarshal("", &schema); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	m := &Manifest{
		Path:     abs,
		Package:  schema.Package,
		Profiles: defaultProfiles(),
	}
	if err := m.validatePackage(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Package.Edition == "" {
		m.Package.Edition = "20"
	}

	// Explicit profile tables override the built-in defaults wholesale.
	for name, prof := range schema.Profile {
		if _, ok := m.Profiles[name]; !ok {
			return nil, fmt.Errorf("%s: unknown profile %q", path, name)
		}
		m.Profiles[name] = prof
	}

	for name, dep := range schema.Dependencies {
		if !dep.System {
			// Non-system dependencies are acquired elsewhere; they do not
			// affect graph construction.
			continue
		}
		m.SysDeps = append(m.SysDeps, SystemDependency{
			Name:    name,
			Version: dep.Version,
		})
	}

	return m, nil
}

func (m *Manifest) validatePackage() error {
	name := m.Package.Name
	if name == "" {
		return fmt.Errorf("package.name is required")
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("package.name %q may only contain lowercase letters, digits, - and _", name)
	}
	if m.Package.Version == "" {
		return fmt.Errorf("package.version is required")
	}
	return nil
}

// Dir returns the project root directory.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// SrcDir returns the source tree root.
func (m *Manifest) SrcDir() string {
	return filepath.Join(m.Dir(), "src")
}

// Find walks up from start looking for kiln.toml and returns its path.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in %s or any parent directory", FileName, start)
		}
		dir = parent
	}
}

// SourceExts returns the recognized source file extensions.
func (m *Manifest) SourceExts() map[string]struct{} {
	return map[string]struct{}{
		".c": {}, ".c++": {}, ".cc": {}, ".cpp": {}, ".cxx": {},
	}
}

// HeaderExts returns the recognized header file extensions.
func (m *Manifest) HeaderExts() map[string]struct{} {
	return map[string]struct{}{
		".h": {}, ".h++": {}, ".hh": {}, ".hpp": {}, ".hxx": {},
	}
}

// VersionParts splits the package version into numeric-ish major, minor and
// patch components. Missing components come back empty.
func (m *Manifest) VersionParts() (major, minor, patch string) {
	parts := strings.SplitN(m.Package.Version, ".", 3)
	major = parts[0]
	if len(parts) > 1 {
		minor = parts[1]
	}
	if len(parts) > 2 {
		// Strip pre-release / build metadata from the patch component.
		patch = parts[2]
		if i := strings.IndexAny(patch, "-+"); i >= 0 {
			patch = patch[:i]
		}
	}
	return major, minor, patch
}
