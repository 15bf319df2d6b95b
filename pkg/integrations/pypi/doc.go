// Package pypi provides an HTTP client for the Python Package Index JSON API.
//
// Two endpoints are used:
//
//   - /pypi/<name>/json lists the releases of a project ([Client.FetchProject])
//   - /pypi/<name>/<version>/json describes one release ([Client.FetchRelease])
//
// A release carries its runtime requirements, parsed from requires_dist with
// extra-only entries removed, and the sha256 digests of its distribution
// files as "sha256:<hex>" strings suitable for a lock document.
//
//	client := pypi.NewClient(backend, "", 24*time.Hour)
//	project, err := client.FetchProject(ctx, "requests", false)
//	release, err := client.FetchRelease(ctx, "requests", "2.13.0", false)
//
// Responses are cached through the backend given to [NewClient]. Pass
// refresh=true to bypass the cache.
package pypi
