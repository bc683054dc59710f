package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

var deploymentResource = schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}

func newFakeClient(t *testing.T, objects ...runtime.Object) *Client {
	t.Helper()

	dynamicClient := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{
			deploymentResource: "DeploymentList",
			ServiceResource:    "ServiceList",
		},
		objects...,
	)

	return NewClientForTesting(dynamicClient, "team-a")
}

func deployment(namespace, name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"metadata":   map[string]any{"name": name, "namespace": namespace},
			"spec": map[string]any{
				"selector": map[string]any{
					"matchLabels": map[string]any{"app": name},
				},
			},
		},
	}
}

func service(namespace, name string, spec, status map[string]any) *unstructured.Unstructured {
	object := map[string]any{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata":   map[string]any{"name": name, "namespace": namespace},
		"spec":       spec,
	}
	if status != nil {
		object["status"] = status
	}
	return &unstructured.Unstructured{Object: object}
}

func TestList(t *testing.T) {
	client := newFakeClient(t,
		deployment("team-a", "web"),
		deployment("team-a", "api"),
		deployment("team-b", "other"),
	)

	items, err := client.List(context.Background(), deploymentResource, "team-a")
	require.NoError(t, err)
	require.Len(t, items, 2)

	names := []string{items[0].GetName(), items[1].GetName()}
	require.ElementsMatch(t, []string{"web", "api"}, names)
}

func TestCreateAndGetService(t *testing.T) {
	client := newFakeClient(t)
	ctx := context.Background()

	missing, err := client.GetService(ctx, "team-a", "web")
	require.NoError(t, err)
	require.Nil(t, missing)

	created, err := client.Create(ctx, service("team-a", "web", map[string]any{"type": "ClusterIP"}, nil))
	require.NoError(t, err)
	require.Equal(t, "web", created.GetName())

	live, err := client.GetService(ctx, "team-a", "web")
	require.NoError(t, err)
	require.NotNil(t, live)
	require.Equal(t, "team-a", live.GetNamespace())

	_, err = client.Create(ctx, service("team-a", "web", map[string]any{"type": "ClusterIP"}, nil))
	require.True(t, kerrors.IsAlreadyExists(err), "expected already exists error but got: %v", err)
}

func TestCreateDefaultsToActiveNamespace(t *testing.T) {
	client := newFakeClient(t)
	ctx := context.Background()

	_, err := client.Create(ctx, service("", "web", map[string]any{"type": "ClusterIP"}, nil))
	require.NoError(t, err)

	live, err := client.GetService(ctx, "team-a", "web")
	require.NoError(t, err)
	require.NotNil(t, live)
}

func TestCreateUnknownKind(t *testing.T) {
	client := newFakeClient(t)

	_, err := client.Create(context.Background(), deployment("team-a", "web"))
	require.ErrorContains(t, err, "failed to resolve resource")
}

func TestActiveNamespace(t *testing.T) {
	require.Equal(t, "team-a", NewClientForTesting(nil, "team-a").ActiveNamespace())
	require.Equal(t, "default", NewClientForTesting(nil, "").ActiveNamespace())
}

func TestCanonical(t *testing.T) {
	require.Equal(t, "team-a.core.v1.service.web", Canonical(service("team-a", "web", nil, nil)))
	require.Equal(t, "_.apps.v1.deployment.web", Canonical(deployment("", "web")))
}

func TestIsReady(t *testing.T) {
	cases := []struct {
		Name     string
		Service  *unstructured.Unstructured
		Expected bool
	}{
		{
			Name:     "external name",
			Service:  service("ns", "svc", map[string]any{"type": "ExternalName", "externalName": "example.com"}, nil),
			Expected: true,
		},
		{
			Name:     "cluster ip assigned",
			Service:  service("ns", "svc", map[string]any{"type": "ClusterIP", "clusterIP": "10.0.0.1"}, nil),
			Expected: true,
		},
		{
			Name:     "headless",
			Service:  service("ns", "svc", map[string]any{"type": "ClusterIP", "clusterIP": "None"}, nil),
			Expected: true,
		},
		{
			Name:     "cluster ip pending",
			Service:  service("ns", "svc", map[string]any{"type": "ClusterIP"}, nil),
			Expected: false,
		},
		{
			Name:     "load balancer pending",
			Service:  service("ns", "svc", map[string]any{"type": "LoadBalancer", "clusterIP": "10.0.0.1"}, nil),
			Expected: false,
		},
		{
			Name: "load balancer with hostname",
			Service: service(
				"ns",
				"svc",
				map[string]any{"type": "LoadBalancer"},
				map[string]any{"loadBalancer": map[string]any{"ingress": []any{map[string]any{"hostname": "lb.example.com"}}}},
			),
			Expected: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			require.Equal(t, tc.Expected, isReady(tc.Service))
		})
	}
}

func TestWaitForReady(t *testing.T) {
	client := newFakeClient(t,
		service("team-a", "ready", map[string]any{"type": "ClusterIP", "clusterIP": "10.0.0.1"}, nil),
		service("team-a", "pending", map[string]any{"type": "LoadBalancer", "clusterIP": "10.0.0.2"}, nil),
	)

	opts := WaitOptions{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

	require.NoError(t, client.WaitForReady(context.Background(), "team-a", "ready", opts))
	require.ErrorContains(t, client.WaitForReady(context.Background(), "team-a", "pending", opts), "service team-a/pending not ready")
}
