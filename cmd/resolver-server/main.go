package main

import (
	"flag"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/anvil-platform/federation/internal/fsresolver"
	"github.com/anvil-platform/federation/internal/remote"
)

func main() {
	var listenAddr string
	var extensions string
	var cacheSize int
	flag.StringVar(&listenAddr, "listen", ":50051", "address to listen on")
	flag.StringVar(&extensions, "extensions", strings.Join(fsresolver.DefaultExtensions, ","), "comma-separated extensions to probe")
	flag.IntVar(&cacheSize, "stat-cache-size", 0, "number of stat results to cache (0 = default)")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	logger := ctrl.Log.WithName("resolver-server")

	fsr, err := fsresolver.New(fsresolver.Options{
		Extensions: splitList(extensions),
		CacheSize:  cacheSize,
	})
	if err != nil {
		panic(fmt.Errorf("create resolver: %w", err))
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		panic(fmt.Errorf("listen %s: %w", listenAddr, err))
	}

	grpcServer := grpc.NewServer()
	remote.NewServer(fsr).Register(grpcServer)

	logger.Info("serving request resolver", "address", lis.Addr().String(), "service", remote.ServiceName)
	if err := grpcServer.Serve(lis); err != nil {
		panic(fmt.Errorf("grpc serve: %w", err))
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
