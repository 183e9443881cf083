package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	dbchainv1alpha1 "github.com/bayleafwalker/dbchain/api/v1alpha1"
	"github.com/bayleafwalker/dbchain/internal/manifest"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(dbchainv1alpha1.AddToScheme(scheme))
}

type result struct {
	name    string
	phase   dbchainv1alpha1.DeploymentPhase
	latency time.Duration
}

func main() {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	} else {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	flag.StringVar(&kubeconfig, "kubeconfig", kubeconfig, "absolute path to the kubeconfig file")

	var count int
	var namespace string
	var manifestPath string
	var timeout time.Duration
	var keep bool

	flag.IntVar(&count, "deployments", 10, "Number of DatabaseDeployments to submit")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to submit deployments in")
	flag.StringVar(&manifestPath, "f", "", "DatabaseDeployment manifest used as template")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for each deployment to be planned")
	flag.BoolVar(&keep, "keep", false, "Keep the submitted deployments")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("load-test")

	if manifestPath == "" {
		fmt.Fprintln(os.Stderr, "dbchain-load-test: -f is required")
		os.Exit(2)
	}
	template, err := manifest.Load(manifestPath)
	if err != nil {
		log.Error(err, "unable to load manifest")
		os.Exit(1)
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		log.Error(err, "unable to build kubeconfig")
		os.Exit(1)
	}
	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		log.Error(err, "unable to create client")
		os.Exit(1)
	}

	log.Info("starting load test", "deployments", count, "namespace", namespace)

	var wg sync.WaitGroup
	start := time.Now()
	results := make(chan result, count)
	prefix := fmt.Sprintf("load-test-%d", time.Now().Unix())

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			dd := &dbchainv1alpha1.DatabaseDeployment{}
			dd.Name = fmt.Sprintf("%s-%d", prefix, id)
			dd.Namespace = namespace
			dd.Labels = template.Labels
			dd.Spec = *template.Spec.DeepCopy()
			dlog := log.WithValues("deployment", dd.Name)

			createStart := time.Now()
			if err := k8sClient.Create(context.Background(), dd); err != nil {
				dlog.Error(err, "unable to create deployment")
				return
			}
			if !keep {
				defer func() { _ = k8sClient.Delete(context.Background(), dd) }()
			}

			phase, err := waitForPlan(k8sClient, client.ObjectKeyFromObject(dd), timeout)
			if err != nil {
				dlog.Error(err, "deployment not planned")
				return
			}
			latency := time.Since(createStart)
			dlog.Info("planned", "phase", phase, "latency", latency)
			results <- result{name: dd.Name, phase: phase, latency: latency}
		}(i)
	}

	wg.Wait()
	close(results)
	totalDuration := time.Since(start)

	var totalLatency time.Duration
	planned, failed := 0, 0
	for r := range results {
		totalLatency += r.latency
		if r.phase == dbchainv1alpha1.PhaseError {
			failed++
			continue
		}
		planned++
	}

	if n := planned + failed; n > 0 {
		fmt.Printf("Load test completed in %v. %d planned, %d failed. Avg planning latency: %v\n", totalDuration, planned, failed, totalLatency/time.Duration(n))
	} else {
		fmt.Printf("Load test completed in %v. No deployments were planned.\n", totalDuration)
		os.Exit(1)
	}
}

// waitForPlan polls until the controller has observed the current generation
// and left the Pending phase.
func waitForPlan(c client.Client, key client.ObjectKey, timeout time.Duration) (dbchainv1alpha1.DeploymentPhase, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timeout waiting for %s: %w", key, ctx.Err())
		case <-time.After(time.Second):
			var current dbchainv1alpha1.DatabaseDeployment
			if err := c.Get(ctx, key, &current); err != nil {
				continue
			}
			if current.Status.ObservedGeneration < current.Generation {
				continue
			}
			switch current.Status.Phase {
			case dbchainv1alpha1.PhasePlanned, dbchainv1alpha1.PhaseError:
				return current.Status.Phase, nil
			}
		}
	}
}
