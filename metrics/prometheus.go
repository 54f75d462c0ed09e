package metrics

import "github.com/docker/go-metrics"

const (
	// NamespacePrefix is the namespace of prometheus metrics
	NamespacePrefix = "mapsign"
)

var (
	// StorageNamespace is the prometheus namespace of template and signature store operations
	StorageNamespace = metrics.NewNamespace(NamespacePrefix, "storage", nil)

	// HTTPNamespace is the prometheus namespace of the http front
	HTTPNamespace = metrics.NewNamespace(NamespacePrefix, "http", nil)
)
