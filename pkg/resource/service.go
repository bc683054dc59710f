package resource

import "k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

const (
	ServiceAPIVersion = "v1"
	ServiceKind       = "Service"
)

// ServicePort omits unset optional fields instead of sending zero values.
type ServicePort struct {
	Name       string `json:"name,omitempty"`
	Protocol   string `json:"protocol"`
	Port       *int32 `json:"port,omitempty"`
	TargetPort *int32 `json:"targetPort,omitempty"`
}

type ServiceSpec struct {
	Type                  string            `json:"type"`
	Selector              map[string]string `json:"selector"`
	Ports                 []ServicePort     `json:"ports"`
	ExternalName          string            `json:"externalName,omitempty"`
	ExternalTrafficPolicy string            `json:"externalTrafficPolicy,omitempty"`
	ClusterIP             string            `json:"clusterIP,omitempty"`
	SessionAffinity       string            `json:"sessionAffinity,omitempty"`
}

type Service Resource[ServiceSpec]

func NewService(name, namespace string, spec ServiceSpec) Service {
	return Service{
		APIVersion: ServiceAPIVersion,
		Kind:       ServiceKind,
		Metadata:   Metadata{Name: name, Namespace: namespace},
		Spec:       spec,
	}
}

func (service Service) Unstructured() (*unstructured.Unstructured, error) {
	return ToUnstructured(&service)
}
