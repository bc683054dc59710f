package expose

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

var ErrSelectorUnsupported = errors.New("selector unsupported: matchExpressions cannot be expressed as a service selector")

// SourceList is the result of listing a single source kind.
// Err holds the fetch failure in place of Items.
type SourceList struct {
	Kind   SourceKind
	Loaded bool
	Items  []*unstructured.Unstructured
	Err    string
}

func (list SourceList) Ready() bool {
	return list.Loaded && list.Err == ""
}

// Names returns the item names in display order.
func (list SourceList) Names() []string {
	names := make([]string, len(list.Items))
	for i, item := range list.Items {
		names[i] = item.GetName()
	}
	return names
}

func sortByName(items []*unstructured.Unstructured) {
	slices.SortStableFunc(items, func(a, b *unstructured.Unstructured) int {
		return strings.Compare(a.GetName(), b.GetName())
	})
}

// Resolve returns the candidate at itemIndex of the kind at kindIndex, or nil when
// nothing resolvable is selected.
func Resolve(sources []SourceList, kindIndex, itemIndex int) *unstructured.Unstructured {
	if kindIndex < 0 || kindIndex >= len(sources) {
		return nil
	}
	list := sources[kindIndex]
	if !list.Ready() {
		return nil
	}
	if itemIndex < 0 || itemIndex >= len(list.Items) {
		return nil
	}
	return list.Items[itemIndex]
}

// SelectorOf derives the flat label map a Service selects on from the candidate's spec.selector.
// Workloads using label selector structs contribute their matchLabels, older kinds such as
// ReplicationController and DeploymentConfig carry the label map directly.
func SelectorOf(candidate *unstructured.Unstructured) (map[string]string, error) {
	selector, _, err := unstructured.NestedMap(candidate.Object, "spec", "selector")
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}

	if expressions, ok := selector["matchExpressions"]; ok && expressions != nil {
		return nil, ErrSelectorUnsupported
	}

	if matchLabels, ok := selector["matchLabels"]; ok {
		if matchLabels == nil {
			return map[string]string{}, nil
		}
		labels, _, err := unstructured.NestedStringMap(selector, "matchLabels")
		if err != nil {
			return nil, fmt.Errorf("invalid matchLabels: %w", err)
		}
		return labels, nil
	}

	if selector == nil {
		return nil, nil
	}

	labels := make(map[string]string, len(selector))
	for key, value := range selector {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("invalid selector: value of %q is %T, not string", key, value)
		}
		labels[key] = str
	}

	return labels, nil
}
