package compiler

import (
	"context"
	"strings"
	"unicode"

	"github.com/kilnpkg/kiln/pkg/command"
)

// Macro is a -D preprocessor definition.
type Macro struct {
	Name  string
	Value string
}

func (m Macro) String() string {
	if m.Value == "" {
		return "-D" + m.Name
	}
	return "-D" + m.Name + "=" + m.Value
}

// IncludeDir is a -I or -isystem search directory.
type IncludeDir struct {
	Dir    string
	System bool
}

func (d IncludeDir) String() string {
	if d.System {
		return "-isystem" + d.Dir
	}
	return "-I" + d.Dir
}

// CFlags is the compile-time half of the flag model.
type CFlags struct {
	Macros      []Macro
	IncludeDirs []IncludeDir
	Others      []string // e.g. -pthread, -fPIC
}

// Merge appends the other flag set after this one.
func (f *CFlags) Merge(other CFlags) {
	f.Macros = append(f.Macros, other.Macros...)
	f.IncludeDirs = append(f.IncludeDirs, other.IncludeDirs...)
	f.Others = append(f.Others, other.Others...)
}

// LdFlags is the link-time half of the flag model.
type LdFlags struct {
	LibDirs []string // -L<dir>
	Libs    []string // -l<lib>
	Others  []string // e.g. -Wl,...
}

// Merge appends the other flag set after this one.
func (f *LdFlags) Merge(other LdFlags) {
	f.LibDirs = append(f.LibDirs, other.LibDirs...)
	f.Libs = append(f.Libs, other.Libs...)
	f.Others = append(f.Others, other.Others...)
}

// Options bundles compile and link flags.
type Options struct {
	CFlags  CFlags
	LdFlags LdFlags
}

// Merge appends the other options after these.
func (o *Options) Merge(other Options) {
	o.CFlags.Merge(other.CFlags)
	o.LdFlags.Merge(other.LdFlags)
}

func parseCFlagTokens(tokens []string) CFlags {
	var flags CFlags
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "-D"):
			macro := tok[2:]
			if name, value, found := strings.Cut(macro, "="); found {
				flags.Macros = append(flags.Macros, Macro{Name: name, Value: value})
			} else {
				flags.Macros = append(flags.Macros, Macro{Name: macro})
			}
		case strings.HasPrefix(tok, "-I"):
			flags.IncludeDirs = append(flags.IncludeDirs, IncludeDir{Dir: tok[2:], System: true})
		default:
			flags.Others = append(flags.Others, tok)
		}
	}
	return flags
}

func parseLdFlagTokens(tokens []string) LdFlags {
	var flags LdFlags
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, "-L"):
			flags.LibDirs = append(flags.LibDirs, tok[2:])
		case strings.HasPrefix(tok, "-l"):
			flags.Libs = append(flags.Libs, tok[2:])
		default:
			flags.Others = append(flags.Others, tok)
		}
	}
	return flags
}

// PkgConfigOptions resolves a system dependency through pkg-config into
// compile and link flags.
func PkgConfigOptions(ctx context.Context, runner *command.Runner, name, minVersion string) (Options, error) {
	query := name
	if minVersion != "" {
		query = name + " >= " + minVersion
	}

	cOut, err := runner.Output(ctx, command.New("pkg-config", "--cflags", query))
	if err != nil {
		return Options{}, err
	}
	ldOut, err := runner.Output(ctx, command.New("pkg-config", "--libs", query))
	if err != nil {
		return Options{}, err
	}

	return Options{
		CFlags:  parseCFlagTokens(strings.Fields(cOut)),
		LdFlags: parseLdFlagTokens(strings.Fields(ldOut)),
	}, nil
}

// ParseEnvFlags splits an environment flag string (CXXFLAGS, LDFLAGS) into
// arguments. Quotes group words and a backslash preserves the following
// character, so flags containing spaces survive intact.
func ParseEnvFlags(env string) []string {
	var result []string
	var buf strings.Builder

	backslash := false
	inQuote := false
	quoteChar := rune(0)

	for _, c := range env {
		switch {
		case backslash:
			buf.WriteRune(c)
			backslash = false
		case inQuote:
			switch c {
			case '\\':
				backslash = true
			case quoteChar:
				inQuote = false
			default:
				buf.WriteRune(c)
			}
		case c == '\'' || c == '"':
			inQuote = true
			quoteChar = c
		case c == '\\':
			backslash = true
		case unicode.IsSpace(c):
			if buf.Len() > 0 {
				result = append(result, buf.String())
				buf.Reset()
			}
		default:
			buf.WriteRune(c)
		}
	}

	if buf.Len() > 0 {
		result = append(result, buf.String())
	}
	return result
}
