package k8s

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
)

// isReady reports whether a service can receive traffic: load balancers need an ingress
// address, external names are ready immediately, and other types once a cluster IP is set.
func isReady(service *unstructured.Unstructured) bool {
	serviceType, _, _ := unstructured.NestedString(service.Object, "spec", "type")

	switch serviceType {
	case "ExternalName":
		return true
	case "LoadBalancer":
		ingress, _, _ := unstructured.NestedSlice(service.Object, "status", "loadBalancer", "ingress")
		for _, entry := range ingress {
			values, _ := entry.(map[string]any)
			if ip, _ := values["ip"].(string); ip != "" {
				return true
			}
			if hostname, _ := values["hostname"].(string); hostname != "" {
				return true
			}
		}
		return false
	default:
		clusterIP, _, _ := unstructured.NestedString(service.Object, "spec", "clusterIP")
		return clusterIP != ""
	}
}

type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForReady polls the named service until it is ready or the timeout elapses.
func (client Client) WaitForReady(ctx context.Context, namespace, name string, opts WaitOptions) error {
	if opts.Interval == 0 {
		opts.Interval = time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}

	err := wait.PollUntilContextTimeout(ctx, opts.Interval, opts.Timeout, true, func(ctx context.Context) (bool, error) {
		service, err := client.GetService(ctx, namespace, name)
		if err != nil {
			return false, err
		}
		return service != nil && isReady(service), nil
	})
	if err != nil {
		return fmt.Errorf("service %s/%s not ready: %w", namespace, name, err)
	}

	return nil
}
