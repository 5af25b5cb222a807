package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/anvil-platform/federation/internal/fsresolver"
	"github.com/anvil-platform/federation/internal/remote"
	"github.com/anvil-platform/federation/internal/resolver"
)

var setupLog = ctrl.Log.WithName("setup")

type configFlags []string

func (c *configFlags) String() string { return strings.Join(*c, ",") }

func (c *configFlags) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func main() {
	var configs configFlags
	var contextDir string
	var resolverTarget string
	var maxConcurrency int
	var metricsAddr string
	var interval time.Duration

	flag.Var(&configs, "config", "Share config file (YAML). Repeat for several containers.")
	flag.StringVar(&contextDir, "context", "", "Directory relative requests are resolved against. Defaults to the working directory.")
	flag.StringVar(&resolverTarget, "resolver", "", "gRPC address of a remote request resolver. Empty resolves on the local filesystem.")
	flag.IntVar(&maxConcurrency, "max-concurrency", 0, "Maximum concurrent resolver calls per batch (0 = unbounded).")
	flag.StringVar(&metricsAddr, "metrics-bind-address", "", "The address the metric endpoint binds to. Empty disables it.")
	flag.DurationVar(&interval, "interval", 0, "Re-resolve on this interval until interrupted (0 = run once).")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if len(configs) == 0 {
		setupLog.Error(errors.New("no -config given"), "nothing to resolve")
		os.Exit(2)
	}
	if contextDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			setupLog.Error(err, "unable to determine working directory")
			os.Exit(1)
		}
		contextDir = wd
	}

	requests, closeRequests, err := newRequestResolver(resolverTarget)
	if err != nil {
		setupLog.Error(err, "unable to create request resolver", "resolver", resolverTarget)
		os.Exit(1)
	}
	defer closeRequests()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	r := &runner{
		containers: containersFromFlags(configs),
		context:    contextDir,
		resolver:   resolver.NewDefault(requests, resolver.Options{MaxConcurrency: maxConcurrency}),
		trace:      resolver.NewDependencyTrace(),
		out:        os.Stdout,
	}

	ctx := ctrl.SetupSignalHandler()
	if interval <= 0 {
		ok, err := r.runOnce(ctx)
		if err != nil {
			setupLog.Error(err, "resolution failed")
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
		return
	}

	setupLog.Info("watching share configs", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.runOnce(ctx); err != nil {
			setupLog.Error(err, "resolution failed")
		}
		if p, ok := requests.(purger); ok {
			p.Purge()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// purger is implemented by request resolvers that cache lookups between
// runs.
type purger interface {
	Purge()
}

func newRequestResolver(target string) (resolver.RequestResolver, func(), error) {
	if target == "" {
		fsr, err := fsresolver.New(fsresolver.Options{})
		if err != nil {
			return nil, nil, err
		}
		return fsr, func() {}, nil
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return remote.NewClient(conn), func() { _ = conn.Close() }, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	setupLog.Info("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		setupLog.Error(err, "metrics endpoint stopped")
	}
}

func containersFromFlags(paths []string) []container {
	out := make([]container, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out = append(out, container{name: name, path: p})
	}
	return out
}
