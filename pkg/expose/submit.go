package expose

import (
	"context"
	"errors"
	"fmt"
	"path"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/expose/internal"
	"github.com/davidmdm/expose/pkg/resource"
)

var (
	ErrNoName         = errors.New("name is required")
	ErrNoSource       = errors.New("no source selected")
	ErrNoExternalName = errors.New("external name is required for services of type ExternalName")
	ErrSubmitting     = errors.New("submission already in progress")
)

type Creator interface {
	Create(ctx context.Context, resource *unstructured.Unstructured) (*unstructured.Unstructured, error)
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (fn NavigatorFunc) Navigate(path string) { fn(path) }

type SubmissionState int

const (
	Idle SubmissionState = iota
	Submitting
	Succeeded
)

func (state SubmissionState) String() string {
	switch state {
	case Idle:
		return "Idle"
	case Submitting:
		return "Submitting"
	case Succeeded:
		return "Succeeded"
	default:
		return fmt.Sprintf("SubmissionState(%d)", int(state))
	}
}

func (form *Form) InProgress() bool {
	return form.State == Submitting
}

// ServicePath is the console path of a service's detail page.
func ServicePath(namespace, name string) string {
	return path.Join("/k8s/ns", namespace, "services", name)
}

// Service builds the payload submitted to the cluster.
func (form *Form) Service() (*resource.Service, error) {
	if form.Name == "" {
		return nil, ErrNoName
	}

	source := form.Source()
	if source == nil {
		return nil, ErrNoSource
	}

	selector, err := SelectorOf(source)
	if err != nil {
		return nil, err
	}

	if form.Type == corev1.ServiceTypeExternalName && form.ExternalName == "" {
		return nil, ErrNoExternalName
	}

	rows := form.Ports.Rows()

	spec := resource.ServiceSpec{
		Type:     string(form.Type),
		Selector: selector,
		Ports:    make([]resource.ServicePort, len(rows)),
	}

	for i, row := range rows {
		spec.Ports[i] = resource.ServicePort{
			Name:       row.Name,
			Protocol:   string(row.Protocol),
			Port:       row.Port,
			TargetPort: row.TargetPort,
		}
	}

	switch form.Type {
	case corev1.ServiceTypeExternalName:
		spec.ExternalName = form.ExternalName
	case corev1.ServiceTypeLoadBalancer:
		spec.ExternalTrafficPolicy = string(corev1.ServiceExternalTrafficPolicyLocal)
	}

	if form.Headless {
		spec.ClusterIP = corev1.ClusterIPNone
	}

	if form.SessionAffinity == AffinityClient {
		spec.SessionAffinity = string(corev1.ServiceAffinityClientIP)
	}

	service := resource.NewService(form.Name, form.Namespace, spec)

	return &service, nil
}

// Submit creates the service and navigates to it. On failure the error message is kept
// on the form and the form returns to Idle so that the user may submit again.
func (form *Form) Submit(ctx context.Context, creator Creator, navigator Navigator) error {
	if form.InProgress() {
		return ErrSubmitting
	}

	defer internal.DebugTimer(ctx, "submit")()

	service, err := form.Service()
	if err != nil {
		form.Error = err.Error()
		return err
	}

	payload, err := service.Unstructured()
	if err != nil {
		form.Error = err.Error()
		return fmt.Errorf("failed to convert service: %w", err)
	}

	form.State = Submitting
	form.Error = ""

	if _, err := creator.Create(ctx, payload); err != nil {
		form.State = Idle
		form.Error = err.Error()
		return err
	}

	form.State = Succeeded
	navigator.Navigate(ServicePath(form.Namespace, form.Name))

	return nil
}
