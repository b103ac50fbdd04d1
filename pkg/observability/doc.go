/*
Package observability turns editor lifecycle hooks into Prometheus metrics.

Metrics registers its collectors on a private registry so several instances
can coexist in tests; Handler exposes that registry for scraping.
*/
package observability
