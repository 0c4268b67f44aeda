// Package server exposes the HTTP observability surface: Kubernetes
// style health probes, Prometheus metrics, build info, and a manual
// rescan trigger. It serves operators, not end users; browsing the
// index is out of scope.
package server
