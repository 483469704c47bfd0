// Package netboxapi is a dynamic object mapper for the Netbox REST API.
//
// Instead of a generated client per endpoint, the package exposes a single
// Mapper type addressed by the two-level namespace Netbox uses (application
// and model). Collections are listed as lazy, paginated streams; rows come
// back as mappers whose foreign-key fields dereference into further mappers
// on first access.
//
// # Basic Usage
//
//	client, err := netboxapi.New("https://netbox.example.com/api", token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prefixes := client.Mapper("ipam", "prefixes")
//	stream, err := prefixes.Get(ctx, url.Values{"status": {"active"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for stream.Next(ctx) {
//	    p := stream.Mapper()
//	    name, _ := p.String("prefix")
//	    site, err := p.ForeignKey(ctx, "site") // lazy, memoized
//	    ...
//	}
//	if err := stream.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// Creation, update and deletion go through the same proxy:
//
//	created, err := prefixes.Post(ctx, map[string]any{"prefix": "10.0.0.0/24", "site": site})
//	_, err = created.Put(ctx, map[string]any{"description": "lab"})
//	_, err = created.Delete(ctx)
//
// # Active and Passive Mappers
//
// Post verifies every created object with a follow-up GET by id. When that
// GET fails (some Netbox sub-resources are not independently addressable),
// the returned mapper is passive: its fields are readable, but Get, Post,
// Put and Delete return ErrPassiveMapper.
//
// The package issues blocking, sequential HTTP requests and performs no
// caching beyond per-instance foreign-key memoization. Mappers are not safe
// for concurrent use.
package netboxapi
