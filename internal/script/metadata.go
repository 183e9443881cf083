package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bayleafwalker/dbchain/internal/version"
)

const directivePrefix = "---"

// Metadata is what a script declares about itself through "--- name: value"
// lines.
type Metadata struct {
	// Schemas owned by the database once the script has run. Only meaningful
	// when HasSchemas is set; otherwise the previous set carries over.
	Schemas    []string
	HasSchemas bool

	CrossBranch  bool
	Dependencies []UnresolvedDependency
}

var descriptorDirectives = map[string]DependencyType{
	"dependency":                  Hard,
	"optional-dependency":         Optional,
	"soft-dependency":             Soft,
	"reverse-dependency":          ReverseHard,
	"reverse-optional-dependency": ReverseOptional,
	"reverse-soft-dependency":     ReverseSoft,
}

// ReadMetadata opens path and parses its directives. source and target
// anchor the before/after shorthands; creation scripts pass version.Min as
// source.
func ReadMetadata(path string, source, target version.Version) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open script %s: %w", path, err)
	}
	defer f.Close()

	md, err := ParseMetadata(f, source, target)
	if err != nil {
		return Metadata{}, fmt.Errorf("script %s: %w", path, err)
	}
	return md, nil
}

// ParseMetadata scans r for directive lines. Lines that start with "---" but
// carry no "name:" pair are plain comments.
func ParseMetadata(r io.Reader, source, target version.Version) (Metadata, error) {
	var md Metadata
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		name, value, ok := splitDirective(sc.Text())
		if !ok {
			continue
		}
		if err := md.apply(name, value, source, target); err != nil {
			return Metadata{}, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

func splitDirective(raw string) (name, value string, ok bool) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, directivePrefix) {
		return "", "", false
	}
	s = strings.TrimLeft(s, "-")
	name, value, ok = strings.Cut(s, ":")
	if !ok {
		return "", "", false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func (md *Metadata) apply(name, value string, source, target version.Version) error {
	switch name {
	case "schemas":
		schemas, err := parseSchemas(value)
		if err != nil {
			return err
		}
		md.Schemas = append(md.Schemas, schemas...)
		md.HasSchemas = true
	case "crossbranch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: crossbranch %q is not a boolean", ErrInvalidDirective, value)
		}
		md.CrossBranch = b
	case "after", "before":
		t := Hard
		if name == "before" {
			t = ReverseHard
		}
		var (
			dep UnresolvedDependency
			err error
		)
		if strings.Contains(value, "-") {
			dep, err = ParseDescriptor(t, value)
		} else {
			dep, err = Shorthand(t, value, source, target)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		md.Dependencies = append(md.Dependencies, dep)
	default:
		t, ok := descriptorDirectives[name]
		if !ok {
			return nil
		}
		dep, err := ParseDescriptor(t, value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		md.Dependencies = append(md.Dependencies, dep)
	}
	return nil
}

func parseSchemas(value string) ([]string, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: missing schema name", ErrInvalidDirective)
	}
	fields := strings.Split(value, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		s := strings.TrimSpace(f)
		if s == "" {
			return nil, fmt.Errorf("%w: missing schema name in %q", ErrInvalidDirective, value)
		}
		out = append(out, s)
	}
	return out, nil
}
