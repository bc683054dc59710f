package expose

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/davidmdm/x/xerr"

	"github.com/davidmdm/expose/internal"
)

type Lister interface {
	List(ctx context.Context, resource schema.GroupVersionResource, namespace string) ([]*unstructured.Unstructured, error)
}

const DefaultServiceType = corev1.ServiceTypeClusterIP

type Affinity string

const (
	AffinityNone   Affinity = "None"
	AffinityClient Affinity = "Client"
)

func ParseAffinity(value string) (Affinity, error) {
	switch affinity := Affinity(value); affinity {
	case AffinityNone, AffinityClient:
		return affinity, nil
	default:
		return "", fmt.Errorf("unsupported session affinity %q: must be one of None, Client", value)
	}
}

func ParseServiceType(value string) (corev1.ServiceType, error) {
	switch serviceType := corev1.ServiceType(value); serviceType {
	case corev1.ServiceTypeClusterIP, corev1.ServiceTypeLoadBalancer, corev1.ServiceTypeExternalName:
		return serviceType, nil
	default:
		return "", fmt.Errorf("unsupported service type %q: must be one of ClusterIP, LoadBalancer, ExternalName", value)
	}
}

// Form holds the state of a single "create service" session.
// It is not safe for concurrent use.
type Form struct {
	Name            string
	Namespace       string
	Type            corev1.ServiceType
	ExternalName    string
	Headless        bool
	SessionAffinity Affinity
	Ports           *Ports

	// Sources has one slot per kind, in the order the kinds were given to NewForm.
	Sources    []SourceList
	SourceKind int
	SourceItem int

	State SubmissionState
	Error string
}

func NewForm(namespace string, kinds ...SourceKind) *Form {
	if len(kinds) == 0 {
		kinds = DefaultSourceKinds
	}

	sources := make([]SourceList, len(kinds))
	for i, kind := range kinds {
		sources[i] = SourceList{Kind: kind}
	}

	return &Form{
		Namespace:       namespace,
		Type:            DefaultServiceType,
		SessionAffinity: AffinityNone,
		Ports:           NewPorts(),
		Sources:         sources,
		SourceKind:      -1,
	}
}

type sourceResult struct {
	index int
	items []*unstructured.Unstructured
	err   error
}

// Load lists every source kind concurrently. Results are applied in the order they
// arrive and each only touches its own slot, so a failing kind never affects the
// others. The first kind to arrive with items becomes the selection if there is none.
//
// The returned error aggregates fetch failures for reporting; the form stays usable.
func (form *Form) Load(ctx context.Context, lister Lister) error {
	defer internal.DebugTimer(ctx, "load sources")()

	results := make(chan sourceResult, len(form.Sources))
	for i, source := range form.Sources {
		go func() {
			items, err := lister.List(ctx, source.Kind.Resource, form.Namespace)
			results <- sourceResult{index: i, items: items, err: err}
		}()
	}

	errs := make([]error, len(form.Sources))
	for range form.Sources {
		result := <-results
		errs[result.index] = form.apply(ctx, result)
	}

	return xerr.MultiErrOrderedFrom("failed to load source(s)", errs...)
}

func (form *Form) apply(ctx context.Context, result sourceResult) error {
	slot := &form.Sources[result.index]
	slot.Loaded = true

	if result.err != nil {
		slot.Items = nil
		slot.Err = result.err.Error()
		internal.Debug(ctx).Printf("list %s: %v\n", slot.Kind.Kind, result.err)
		return fmt.Errorf("%s: %w", slot.Kind.Kind, result.err)
	}

	items := result.items
	sortByName(items)

	slot.Items = items
	slot.Err = ""

	internal.Debug(ctx).Printf("list %s: %d item(s)\n", slot.Kind.Kind, len(items))

	if form.SourceKind < 0 && len(items) > 0 {
		form.SourceKind = result.index
		form.SourceItem = 0
	}

	return nil
}

func (form *Form) SelectKind(index int) error {
	if index < 0 || index >= len(form.Sources) {
		return fmt.Errorf("source kind index %d out of range [0, %d)", index, len(form.Sources))
	}
	form.SourceKind = index
	form.SourceItem = 0
	return nil
}

func (form *Form) SelectItem(index int) error {
	if form.SourceKind < 0 {
		return ErrNoSource
	}
	if items := form.Sources[form.SourceKind].Items; index < 0 || index >= len(items) {
		return fmt.Errorf("source index %d out of range [0, %d)", index, len(items))
	}
	form.SourceItem = index
	return nil
}

// SelectByName selects the named item of the given kind. An empty kind selects the
// first kind, in form order, that has an item with that name.
func (form *Form) SelectByName(kind, name string) error {
	if kind == "" {
		for i, source := range form.Sources {
			for j, item := range source.Items {
				if item.GetName() == name {
					form.SourceKind = i
					form.SourceItem = j
					return nil
				}
			}
		}
		return fmt.Errorf("no source named %q in namespace %s", name, form.Namespace)
	}

	kindIndex := -1
	for i, source := range form.Sources {
		if source.Kind.Kind == kind {
			kindIndex = i
			break
		}
	}
	if kindIndex == -1 {
		return fmt.Errorf("unknown source kind %q", kind)
	}

	source := form.Sources[kindIndex]
	if source.Err != "" {
		return fmt.Errorf("%s unavailable: %s", kind, source.Err)
	}

	for i, item := range source.Items {
		if item.GetName() == name {
			form.SourceKind = kindIndex
			form.SourceItem = i
			return nil
		}
	}

	return fmt.Errorf("%s %q not found in namespace %s", kind, name, form.Namespace)
}

// Source returns the selected candidate, or nil when none is resolvable.
func (form *Form) Source() *unstructured.Unstructured {
	return Resolve(form.Sources, form.SourceKind, form.SourceItem)
}

// Ready reports whether the form can be submitted.
func (form *Form) Ready() bool {
	return form.Name != "" && form.Source() != nil
}
