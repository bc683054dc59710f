package expose

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type fakeLister struct {
	items map[schema.GroupVersionResource][]*unstructured.Unstructured
	errs  map[schema.GroupVersionResource]error
	calls atomic.Int32
}

func (lister *fakeLister) List(_ context.Context, resource schema.GroupVersionResource, namespace string) ([]*unstructured.Unstructured, error) {
	lister.calls.Add(1)
	if err := lister.errs[resource]; err != nil {
		return nil, err
	}
	var items []*unstructured.Unstructured
	for _, item := range lister.items[resource] {
		if item.GetNamespace() == namespace {
			items = append(items, item)
		}
	}
	return items, nil
}

func TestNewFormDefaults(t *testing.T) {
	form := NewForm("team-a")

	require.Equal(t, "team-a", form.Namespace)
	require.Equal(t, corev1.ServiceTypeClusterIP, form.Type)
	require.Equal(t, AffinityNone, form.SessionAffinity)
	require.Equal(t, 1, form.Ports.Len())
	require.Equal(t, -1, form.SourceKind)
	require.Equal(t, Idle, form.State)
	require.Len(t, form.Sources, len(DefaultSourceKinds))
	for i, source := range form.Sources {
		require.Equal(t, DefaultSourceKinds[i], source.Kind)
		require.False(t, source.Loaded)
	}
	require.False(t, form.Ready())
}

func TestFormLoad(t *testing.T) {
	lister := &fakeLister{
		items: map[schema.GroupVersionResource][]*unstructured.Unstructured{
			Deployment.Resource: {
				workload("Deployment", "web", matchLabels(map[string]any{"app": "web"})),
				workload("Deployment", "api", matchLabels(map[string]any{"app": "api"})),
			},
			StatefulSet.Resource: {
				workload("StatefulSet", "db", matchLabels(map[string]any{"app": "db"})),
			},
		},
		errs: map[schema.GroupVersionResource]error{
			DeploymentConfig.Resource: errors.New("the server could not find the requested resource"),
		},
	}

	form := NewForm("team-a")

	err := form.Load(context.Background(), lister)
	require.ErrorContains(t, err, "DeploymentConfig: the server could not find the requested resource")
	require.EqualValues(t, len(DefaultSourceKinds), lister.calls.Load())

	for _, source := range form.Sources {
		require.True(t, source.Loaded, source.Kind.Kind)
	}

	require.Equal(t, []string{"api", "web"}, form.Sources[0].Names())
	require.Equal(t, "the server could not find the requested resource", form.Sources[1].Err)
	require.Nil(t, form.Sources[1].Items)
	require.Equal(t, []string{"db"}, form.Sources[2].Names())
	require.Empty(t, form.Sources[3].Items)
	require.Empty(t, form.Sources[3].Err)

	// Either non-empty kind may arrive first; whichever did is selected at item 0.
	require.Contains(t, []int{0, 2}, form.SourceKind)
	require.Equal(t, 0, form.SourceItem)
	require.NotNil(t, form.Source())
}

func TestFormLoadAllEmpty(t *testing.T) {
	form := NewForm("team-a", Deployment, DeploymentConfig)

	require.NoError(t, form.Load(context.Background(), &fakeLister{}))
	require.Equal(t, -1, form.SourceKind)
	require.Nil(t, form.Source())
}

func TestFormApplyFirstNonEmptyWins(t *testing.T) {
	ctx := context.Background()
	form := NewForm("team-a", Deployment, DeploymentConfig, StatefulSet)

	require.Error(t, form.apply(ctx, sourceResult{index: 1, err: errors.New("forbidden")}))
	require.Equal(t, -1, form.SourceKind)

	require.NoError(t, form.apply(ctx, sourceResult{index: 2, items: []*unstructured.Unstructured{workload("StatefulSet", "db", nil)}}))
	require.Equal(t, 2, form.SourceKind)

	require.NoError(t, form.apply(ctx, sourceResult{index: 0, items: []*unstructured.Unstructured{workload("Deployment", "web", nil)}}))
	require.Equal(t, 2, form.SourceKind, "a later arrival must not override the selection")
	require.Equal(t, []string{"web"}, form.Sources[0].Names())
	require.Equal(t, "forbidden", form.Sources[1].Err)
}

func TestFormSelection(t *testing.T) {
	form := NewForm("team-a", Deployment, ReplicationController)
	form.Sources[0] = SourceList{
		Kind:   Deployment,
		Loaded: true,
		Items: []*unstructured.Unstructured{
			workload("Deployment", "api", nil),
			workload("Deployment", "web", nil),
		},
	}
	form.Sources[1] = SourceList{Kind: ReplicationController, Loaded: true, Err: "forbidden"}

	require.ErrorIs(t, form.SelectItem(0), ErrNoSource)

	require.NoError(t, form.SelectByName("Deployment", "web"))
	require.Equal(t, 0, form.SourceKind)
	require.Equal(t, 1, form.SourceItem)
	require.Equal(t, "web", form.Source().GetName())

	require.NoError(t, form.SelectItem(0))
	require.Equal(t, "api", form.Source().GetName())
	require.EqualError(t, form.SelectItem(2), "source index 2 out of range [0, 2)")

	require.NoError(t, form.SelectKind(1))
	require.Nil(t, form.Source())
	require.EqualError(t, form.SelectKind(5), "source kind index 5 out of range [0, 2)")

	require.EqualError(t, form.SelectByName("ReplicationController", "legacy"), "ReplicationController unavailable: forbidden")
	require.EqualError(t, form.SelectByName("Deployment", "missing"), `Deployment "missing" not found in namespace team-a`)
	require.EqualError(t, form.SelectByName("CronJob", "nightly"), `unknown source kind "CronJob"`)

	require.NoError(t, form.SelectByName("", "web"))
	require.Equal(t, 0, form.SourceKind)
	require.Equal(t, 1, form.SourceItem)
	require.EqualError(t, form.SelectByName("", "legacy"), `no source named "legacy" in namespace team-a`)
}

func TestFormReady(t *testing.T) {
	form := NewForm("team-a", Deployment)
	form.Sources[0] = SourceList{Kind: Deployment, Loaded: true, Items: []*unstructured.Unstructured{workload("Deployment", "web", nil)}}

	require.False(t, form.Ready())

	form.Name = "my-svc"
	require.False(t, form.Ready(), "no source selected yet")

	require.NoError(t, form.SelectKind(0))
	require.True(t, form.Ready())
}

func TestParseFormValues(t *testing.T) {
	serviceType, err := ParseServiceType("LoadBalancer")
	require.NoError(t, err)
	require.Equal(t, corev1.ServiceTypeLoadBalancer, serviceType)

	_, err = ParseServiceType("NodePort")
	require.EqualError(t, err, `unsupported service type "NodePort": must be one of ClusterIP, LoadBalancer, ExternalName`)

	affinity, err := ParseAffinity("Client")
	require.NoError(t, err)
	require.Equal(t, AffinityClient, affinity)

	_, err = ParseAffinity("ClientIP")
	require.Error(t, err)

	kind, ok := LookupSourceKind(DefaultSourceKinds, "statefulset")
	require.True(t, ok)
	require.Equal(t, StatefulSet, kind)

	_, ok = LookupSourceKind(DefaultSourceKinds, "Job")
	require.False(t, ok)
}
