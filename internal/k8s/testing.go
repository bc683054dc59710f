package k8s

import (
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// NewClientForTesting wires a client to the given dynamic interface with a static REST
// mapper that knows about core services.
func NewClientForTesting(dynamicClient dynamic.Interface, namespace string) *Client {
	mapper := meta.NewDefaultRESTMapper([]schema.GroupVersion{{Version: "v1"}})
	mapper.Add(schema.GroupVersionKind{Version: "v1", Kind: "Service"}, meta.RESTScopeNamespace)

	return &Client{
		dynamic:   dynamicClient,
		mapper:    mapper,
		namespace: namespace,
	}
}
