package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"

	"github.com/bayleafwalker/dbchain/internal/manifest"
	"github.com/bayleafwalker/dbchain/internal/planner"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var manifestPath string
	var output string
	var timeout time.Duration
	var scriptPaths stringList
	var testData bool

	flag.StringVar(&manifestPath, "f", "", "DatabaseDeployment manifest to plan")
	flag.StringVar(&output, "o", "text", "output format: text, yaml or json")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "planning timeout")
	flag.Var(&scriptPaths, "scripts", "additional script directory searched after the manifest's own (repeatable)")
	flag.BoolVar(&testData, "test-data", false, "require and run the _testdata companion of every script")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("dbplan")

	if manifestPath == "" {
		fmt.Fprintln(os.Stderr, "dbplan: -f is required")
		flag.Usage()
		os.Exit(2)
	}

	dd, err := manifest.Load(manifestPath)
	if err != nil {
		log.Error(err, "unable to load manifest")
		os.Exit(1)
	}
	in := manifest.PlannerInput(dd)
	in.ScriptPaths = append(in.ScriptPaths, scriptPaths...)
	in.InsertTestData = in.InsertTestData || testData

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	plan, err := planner.NewDefault(log).Plan(ctx, in)
	if err != nil {
		log.Error(err, "planning failed", "manifest", manifestPath)
		os.Exit(1)
	}
	if err := render(os.Stdout, output, plan); err != nil {
		log.Error(err, "unable to render plan")
		os.Exit(1)
	}
}

func render(w io.Writer, format string, plan planner.Plan) error {
	switch format {
	case "text":
		_, err := io.WriteString(w, plan.Summary())
		if err != nil {
			return err
		}
		for _, s := range plan.Diagnostics.SkippedDependencies {
			if _, err := fmt.Fprintf(w, "skipped: %s: %s\n", s.Group, s.Dependency); err != nil {
				return err
			}
		}
		return nil
	case "yaml":
		out, err := yaml.Marshal(plan)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
