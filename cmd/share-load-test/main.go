package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/anvil-platform/federation/internal/remote"
	"github.com/anvil-platform/federation/internal/resolver"
)

func main() {
	var target string
	var numBatches int
	var entriesPerBatch int
	var maxConcurrency int
	var simulatedLatency time.Duration

	flag.StringVar(&target, "target", "", "gRPC request resolver to load (empty uses a synthetic in-process resolver)")
	flag.IntVar(&numBatches, "batches", 10, "Number of concurrent batches")
	flag.IntVar(&entriesPerBatch, "entries", 200, "Share config entries per batch")
	flag.IntVar(&maxConcurrency, "max-concurrency", 0, "Per-batch resolver fan-out bound (0 = unbounded)")
	flag.DurationVar(&simulatedLatency, "latency", 2*time.Millisecond, "Latency of the synthetic resolver")
	flag.Parse()

	var requests resolver.RequestResolver = syntheticResolver(simulatedLatency)
	if target != "" {
		conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatalf("Error dialing %s: %v", target, err)
		}
		defer conn.Close()
		requests = remote.NewClient(conn)
	}
	r := resolver.NewDefault(requests, resolver.Options{MaxConcurrency: maxConcurrency})

	fmt.Printf("Starting load test: %d batches of %d entries\n", numBatches, entriesPerBatch)

	var wg sync.WaitGroup
	start := time.Now()
	latencies := make(chan time.Duration, numBatches)

	for i := 0; i < numBatches; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			batchStart := time.Now()
			plan, err := r.Resolve(context.Background(), resolver.Input{
				Context: "/load",
				Configs: syntheticEntries(id, entriesPerBatch),
			})
			if err != nil {
				fmt.Printf("Error in batch %d: %v\n", id, err)
				return
			}
			latency := time.Since(batchStart)
			latencies <- latency
			fmt.Printf("Batch %d: resolved=%d unresolved=%d prefixed=%d errors=%d in %v\n",
				id, len(plan.Matched.Resolved), len(plan.Matched.Unresolved), len(plan.Matched.Prefixed), len(plan.Errors), latency)
		}(i)
	}

	wg.Wait()
	close(latencies)
	totalDuration := time.Since(start)

	var totalLatency time.Duration
	count := 0
	for l := range latencies {
		totalLatency += l
		count++
	}

	if count > 0 {
		avgLatency := totalLatency / time.Duration(count)
		fmt.Printf("Load test completed in %v. Avg batch latency: %v\n", totalDuration, avgLatency)
	} else {
		fmt.Printf("Load test completed in %v. No batch completed.\n", totalDuration)
	}
}

// syntheticEntries mixes every request shape. Roughly half are relative.
func syntheticEntries(batch, n int) []resolver.Entry {
	entries := make([]resolver.Entry, 0, n)
	for i := 0; i < n; i++ {
		var request string
		cfg := &resolver.ShareConfig{}
		switch i % 6 {
		case 0, 1, 2:
			request = fmt.Sprintf("./src/module-%d-%d", batch, i)
		case 3:
			request = fmt.Sprintf("pkg-%d", i)
			cfg.ShareKey = request
			cfg.Layer = "ssr"
		case 4:
			request = fmt.Sprintf("/abs/module-%d.js", i)
		default:
			request = fmt.Sprintf("vendor-%d/", i)
		}
		entries = append(entries, resolver.Entry{Request: request, Config: cfg})
	}
	return entries
}

func syntheticResolver(latency time.Duration) resolver.RequestResolver {
	return resolver.RequestResolverFunc(func(ctx context.Context, contextPath, request string) (resolver.Resolution, error) {
		time.Sleep(latency)
		path := contextPath + request[1:] + ".js"
		trace := resolver.NewDependencyTrace()
		trace.Files.Insert(path)
		return resolver.Resolution{Path: path, Found: true, Trace: trace}, nil
	})
}
