// Package server provides a graceful net/http server wrapper with
// environment-driven configuration and an errgroup-compatible lifecycle.
//
// Basic usage:
//
//	var cfg server.Config
//	config.MustLoad(&cfg)
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//	if err := g.Wait(); err != nil {
//		log.Fatal(err)
//	}
//
// TLS termination is expected to happen at the load balancer in front of the
// service; the server itself speaks plain HTTP.
package server
