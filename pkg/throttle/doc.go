// Package throttle assembles the rate-limiting and dispatch core behind a
// single service facade.
//
// # Overview
//
// The Service wires together the limiter registry, the dispatcher, the
// batch dispatcher, dispatch metrics, and optional outcome history, all
// from one configuration:
//
//	cfg, _ := config.LoadConfig("callisto.yaml")
//	svc, err := throttle.New(cfg, throttle.Options{})
//	defer svc.Close()
//
//	result := svc.Dispatch(ctx, dispatch.CallTask{
//	    Call:     callImageAPI,
//	    Limiters: []string{"image-api-requests"},
//	})
//
//	batch, err := svc.DispatchBatch(ctx, tasks)
//
// Every collaborator is an explicit object owned by the Service; there is
// no package-level default or ambient lookup. Construct one Service per
// lifecycle you want to control, typically one per process.
//
// A nil configuration yields a working service with default dispatch
// settings and an empty registry; limiters can then be created with
// CreateLimiter.
package throttle
