package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/anvil-platform/federation/internal/remote"
)

func main() {
	var target string
	var contextPath string
	var request string
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC server address")
	flag.StringVar(&contextPath, "context", "/", "context directory")
	flag.StringVar(&request, "request", "./index", "relative request to resolve")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Errorf("dial %s: %w", target, err))
	}
	defer conn.Close()

	res, err := remote.NewClient(conn).ResolveRequest(ctx, contextPath, request)
	if err != nil {
		fmt.Printf("Resolve error: %v (missing=%d)\n", err, res.Trace.Missing.Len())
		return
	}
	if !res.Found {
		fmt.Printf("Resolve: %s not found (probed %v)\n", request, sets.List(res.Trace.Missing))
		return
	}
	fmt.Printf("Resolve ok: %s -> %s (files=%d contexts=%d missing=%d)\n",
		request, res.Path, res.Trace.Files.Len(), res.Trace.Contexts.Len(), res.Trace.Missing.Len())
}
