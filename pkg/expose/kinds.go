package expose

import (
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/davidmdm/expose/internal"
)

// SourceKind is a workload kind that can back a Service.
type SourceKind struct {
	Kind     string
	Resource schema.GroupVersionResource
}

var (
	Deployment            = SourceKind{Kind: "Deployment", Resource: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}}
	DeploymentConfig      = SourceKind{Kind: "DeploymentConfig", Resource: schema.GroupVersionResource{Group: "apps.openshift.io", Version: "v1", Resource: "deploymentconfigs"}}
	StatefulSet           = SourceKind{Kind: "StatefulSet", Resource: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "statefulsets"}}
	DaemonSet             = SourceKind{Kind: "DaemonSet", Resource: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "daemonsets"}}
	ReplicaSet            = SourceKind{Kind: "ReplicaSet", Resource: schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "replicasets"}}
	ReplicationController = SourceKind{Kind: "ReplicationController", Resource: schema.GroupVersionResource{Version: "v1", Resource: "replicationcontrollers"}}
)

// DefaultSourceKinds is the order in which candidate kinds are offered.
var DefaultSourceKinds = []SourceKind{
	Deployment,
	DeploymentConfig,
	StatefulSet,
	DaemonSet,
	ReplicaSet,
	ReplicationController,
}

// LookupSourceKind matches a kind by name, case insensitively.
func LookupSourceKind(kinds []SourceKind, kind string) (SourceKind, bool) {
	return internal.Find(kinds, func(candidate SourceKind) bool {
		return strings.EqualFold(candidate.Kind, kind)
	})
}
