package k8s

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/davidmdm/expose/internal"
)

const (
	fieldManager     = "expose"
	defaultNamespace = "default"
)

var ServiceResource = schema.GroupVersionResource{Version: "v1", Resource: "services"}

type Client struct {
	dynamic   dynamic.Interface
	mapper    meta.RESTMapper
	namespace string
}

// NewClientFromKubeConfig builds a client for the kubeconfig at path. The namespace of
// the kubeconfig's current context becomes the client's active namespace.
func NewClientFromKubeConfig(path string) (*Client, error) {
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: path},
		&clientcmd.ConfigOverrides{},
	)

	restcfg, err := loader.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build k8 config: %w", err)
	}

	namespace, _, err := loader.Namespace()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active namespace: %w", err)
	}

	client, err := NewClient(restcfg)
	if err != nil {
		return nil, err
	}

	client.namespace = namespace

	return client, nil
}

func NewClient(cfg *rest.Config) (*Client, error) {
	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client component: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create k8 clientset: %w", err)
	}

	return &Client{
		dynamic: dynamicClient,
		mapper:  restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(clientset.DiscoveryClient)),
	}, nil
}

// ActiveNamespace is the namespace of the current kubeconfig context, or "default".
func (client Client) ActiveNamespace() string {
	return cmp.Or(client.namespace, defaultNamespace)
}

func (client Client) List(ctx context.Context, resource schema.GroupVersionResource, namespace string) ([]*unstructured.Unstructured, error) {
	defer internal.DebugTimer(ctx, "list "+resource.String())()

	list, err := client.dynamic.Resource(resource).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}

	items := make([]*unstructured.Unstructured, len(list.Items))
	for i := range list.Items {
		items[i] = &list.Items[i]
	}

	return items, nil
}

type CreateOpts struct {
	DryRun bool
}

func (client Client) Create(ctx context.Context, resource *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return client.CreateWithOpts(ctx, resource, CreateOpts{})
}

func (client Client) CreateWithOpts(ctx context.Context, resource *unstructured.Unstructured, opts CreateOpts) (*unstructured.Unstructured, error) {
	defer internal.DebugTimer(ctx, "create "+Canonical(resource))()

	resourceInterface, err := client.GetDynamicResourceInterface(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resource: %w", err)
	}

	dryRun := func() []string {
		if opts.DryRun {
			return []string{metav1.DryRunAll}
		}
		return nil
	}()

	return resourceInterface.Create(ctx, resource, metav1.CreateOptions{
		FieldManager: fieldManager,
		DryRun:       dryRun,
	})
}

// GetService returns the live service or nil if it does not exist.
func (client Client) GetService(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error) {
	service, err := client.dynamic.Resource(ServiceResource).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if kerrors.IsNotFound(err) {
		return nil, nil
	}
	return service, err
}

func (client Client) GetDynamicResourceInterface(resource *unstructured.Unstructured) (dynamic.ResourceInterface, error) {
	mapping, err := client.LookupResourceMapping(resource)
	if err != nil {
		return nil, err
	}
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		return client.dynamic.Resource(mapping.Resource).Namespace(cmp.Or(resource.GetNamespace(), client.ActiveNamespace())), nil
	}
	return client.dynamic.Resource(mapping.Resource), nil
}

func (client Client) LookupResourceMapping(resource *unstructured.Unstructured) (*meta.RESTMapping, error) {
	gvk := schema.FromAPIVersionAndKind(resource.GetAPIVersion(), resource.GetKind())
	return client.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
}

// Canonical names a resource as namespace.group.version.kind.name for messages.
func Canonical(resource *unstructured.Unstructured) string {
	gvk := resource.GroupVersionKind()

	return strings.ToLower(strings.Join(
		[]string{
			cmp.Or(resource.GetNamespace(), "_"),
			cmp.Or(gvk.Group, "core"),
			gvk.Version,
			gvk.Kind,
			resource.GetName(),
		},
		".",
	))
}
