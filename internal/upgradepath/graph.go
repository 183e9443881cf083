// Package upgradepath builds the graph of candidate upgrade scripts for one
// database and searches it for the chain that reaches a target version.
package upgradepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/bayleafwalker/dbchain/internal/script"
	"github.com/bayleafwalker/dbchain/internal/step"
	"github.com/bayleafwalker/dbchain/internal/version"
)

var (
	ErrNoScriptPaths   = errors.New("no script search directories")
	ErrMissingTestData = errors.New("missing test data script")
)

// Options describes the database a Graph is built for.
type Options struct {
	Database string
	// Installed is the zero Version when the database does not exist yet.
	Installed version.Version
	// Schemas currently owned by the installed version.
	Schemas []string
	// ScriptPaths are searched in order; the first directory holding a file
	// name wins.
	ScriptPaths    []string
	InsertTestData bool
	Logger         logr.Logger
}

// Node wraps one step group. Next holds the indices of the nodes reachable by
// running one more script.
type Node struct {
	Group *step.StepGroup
	Next  []int
}

// Graph is an arena of nodes. Index 0 is the start node standing for the
// installed state.
type Graph struct {
	database string
	nodes    []Node
	log      logr.Logger
}

// New returns a graph holding only the start node.
func New(database string, start *step.StepGroup) *Graph {
	return &Graph{
		database: database,
		nodes:    []Node{{Group: start}},
		log:      logr.Discard(),
	}
}

// AddNode appends a node and returns its index.
func (g *Graph) AddNode(group *step.StepGroup) int {
	g.nodes = append(g.nodes, Node{Group: group})
	return len(g.nodes) - 1
}

// AddEdge records that to can run right after from. Duplicate edges are
// ignored.
func (g *Graph) AddEdge(from, to int) {
	for _, n := range g.nodes[from].Next {
		if n == to {
			return
		}
	}
	g.nodes[from].Next = append(g.nodes[from].Next, to)
}

func (g *Graph) Database() string { return g.database }
func (g *Graph) Len() int         { return len(g.nodes) }
func (g *Graph) Node(i int) Node  { return g.nodes[i] }

// Versions returns every version a node of the graph reaches, ascending and
// without duplicates.
func (g *Graph) Versions() []version.Version {
	out := make([]version.Version, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.Group.HasVersion() {
			out = append(out, n.Group.Version)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	uniq := out[:0]
	for i, v := range out {
		if i > 0 && v.Equal(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, v)
	}
	return uniq
}

type scriptFile struct {
	name string
	path string
}

// Build scans the script directories and discovers every node reachable from
// the installed state.
func Build(opts Options) (*Graph, error) {
	if strings.TrimSpace(opts.Database) == "" {
		return nil, errors.New("database name is required")
	}
	if len(opts.ScriptPaths) == 0 {
		return nil, fmt.Errorf("%w for database %s", ErrNoScriptPaths, opts.Database)
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	log = log.WithValues("database", opts.Database)

	files, err := listScripts(opts.ScriptPaths)
	if err != nil {
		return nil, err
	}

	start := &step.StepGroup{
		Database: opts.Database,
		Kind:     step.KindInitial,
		Version:  opts.Installed,
		Schemas:  append([]string(nil), opts.Schemas...),
		Steps:    []step.Step{&step.InitialStep{}},
	}
	g := New(opts.Database, start)
	g.log = log

	byPath := map[string]int{}
	stack := []int{0}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		from := g.nodes[cur].Group

		for _, f := range files {
			var (
				kind   step.GroupKind
				source version.Version
				target version.Version
				ok     bool
				err    error
			)
			if !from.HasVersion() {
				kind, source = step.KindCreate, version.Min
				target, ok, err = script.MatchCreation(opts.Database, f.name)
			} else {
				kind, source = step.KindUpgrade, from.Version
				target, ok, err = script.MatchUpgrade(opts.Database, from.Version, f.name)
			}
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			idx, seen := byPath[f.path]
			if !seen {
				group, err := newGroup(opts, kind, f.path, source, target)
				if err != nil {
					return nil, err
				}
				idx = g.AddNode(group)
				byPath[f.path] = idx
				stack = append(stack, idx)
				log.V(1).Info("discovered script", "script", f.path, "version", target.String(), "crossBranch", group.CrossBranch)
			}
			g.AddEdge(cur, idx)
		}
	}
	log.V(1).Info("built upgrade path graph", "nodes", g.Len())
	return g, nil
}

func newGroup(opts Options, kind step.GroupKind, path string, source, target version.Version) (*step.StepGroup, error) {
	md, err := script.ReadMetadata(path, source, target)
	if err != nil {
		return nil, err
	}
	label := filepath.Base(path)
	group := &step.StepGroup{
		Database:       opts.Database,
		Kind:           kind,
		Version:        target,
		ScriptPath:     path,
		Schemas:        md.Schemas,
		InheritSchemas: !md.HasSchemas,
		CrossBranch:    md.CrossBranch,
		Dependencies:   md.Dependencies,
		Steps:          []step.Step{&step.RunScriptStep{Path: path, Label: label}},
	}
	if kind == step.KindUpgrade {
		group.SourceVersion = source
	}
	if opts.InsertTestData {
		data := script.TestDataPath(path)
		info, err := os.Stat(data)
		if err != nil || info.IsDir() {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMissingTestData, path, data)
		}
		group.Steps = append(group.Steps, &step.RunScriptStep{Path: data, Label: filepath.Base(data)})
	}
	return group, nil
}

// listScripts returns the files of every directory in order. A file name
// already seen in an earlier directory is skipped.
func listScripts(dirs []string) ([]scriptFile, error) {
	seen := map[string]struct{}{}
	var out []scriptFile
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read script directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			key := strings.ToLower(e.Name())
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, scriptFile{name: e.Name(), path: filepath.Join(dir, e.Name())})
		}
	}
	return out, nil
}
