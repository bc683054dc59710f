package main

import (
	"cmp"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/expose/internal"
	"github.com/davidmdm/expose/internal/k8s"
	"github.com/davidmdm/expose/internal/text"
	"github.com/davidmdm/expose/pkg/expose"
)

// Cluster is everything create needs from the cluster. *k8s.Client implements it.
type Cluster interface {
	expose.Lister
	expose.Creator
	ActiveNamespace() string
	GetService(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error)
	WaitForReady(ctx context.Context, namespace, name string, opts k8s.WaitOptions) error
}

type CreateParams struct {
	GlobalSettings

	Name            string
	Source          string
	Namespace       string
	Kind            string
	Type            string
	ExternalName    string
	Headless        bool
	SessionAffinity string
	Ports           PortSpecs

	DryRun     bool
	Diff       bool
	Context    int
	Color      bool
	ConsoleURL string
	Wait       time.Duration
	Poll       time.Duration
}

//go:embed cmd_create_help.txt
var createHelp string

func init() {
	createHelp = strings.TrimSpace(internal.Colorize(createHelp))
}

func GetCreateParams(settings GlobalSettings, args []string) (*CreateParams, error) {
	flagset := flag.NewFlagSet("create", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), createHelp)
		flagset.PrintDefaults()
	}

	params := CreateParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.StringVar(&params.Namespace, "namespace", "", "namespace of the service and its source. Defaults to the namespace of the current context")
	flagset.StringVar(&params.Kind, "kind", "", "kind of the source workload. If empty every supported kind is searched")
	flagset.StringVar(&params.Type, "type", string(expose.DefaultServiceType), "service type: one of ClusterIP, LoadBalancer, ExternalName")
	flagset.StringVar(&params.ExternalName, "external-name", "", "DNS name the service aliases. Required with -type ExternalName")
	flagset.BoolVar(&params.Headless, "headless", false, "create a headless service (clusterIP: None)")
	flagset.StringVar(&params.SessionAffinity, "session-affinity", string(expose.AffinityNone), "session affinity: one of None, Client")
	flagset.Var(&params.Ports, "port", "port to expose as [name:]port[:targetPort][/protocol]. May be repeated")

	flagset.BoolVar(&params.DryRun, "dry-run", false, "print the service that would be created as yaml without creating it")
	flagset.BoolVar(&params.Diff, "diff", false, "print a diff between the live service of the same name and the one that would be created")
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not using -diff)")
	flagset.BoolVar(&params.Color, "color", term.IsTerminal(int(os.Stdout.Fd())), "use colored output in diffs")
	flagset.StringVar(&params.ConsoleURL, "console-url", "", "base url prepended to the printed service path")
	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for the service to be ready")
	flagset.DurationVar(&params.Poll, "poll", time.Second, "interval to poll service state at. Used with -wait")

	flagset.Parse(args)

	params.Name = flagset.Arg(0)
	params.Source = flagset.Arg(1)

	if params.Name == "" {
		return nil, fmt.Errorf("service name is required as first positional arg")
	}
	if params.Source == "" {
		return nil, fmt.Errorf("source is required as second positional arg")
	}

	return &params, nil
}

func Create(ctx context.Context, params CreateParams) error {
	client, err := k8s.NewClientFromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate k8 client: %w", err)
	}
	return create(ctx, client, params)
}

func create(ctx context.Context, cluster Cluster, params CreateParams) error {
	form, err := buildForm(ctx, cluster, params)
	if err != nil {
		return err
	}

	service, err := form.Service()
	if err != nil {
		return err
	}

	payload, err := service.Unstructured()
	if err != nil {
		return fmt.Errorf("failed to convert service: %w", err)
	}

	stdout := internal.Stdout(ctx)

	if params.DryRun {
		output, err := text.ToYAML(payload.Object)
		if err != nil {
			return fmt.Errorf("failed to encode service: %w", err)
		}
		_, err = fmt.Fprint(stdout, output)
		return err
	}

	if params.Diff {
		live, err := cluster.GetService(ctx, form.Namespace, form.Name)
		if err != nil {
			return fmt.Errorf("failed to get live service: %w", err)
		}

		a := text.File{Name: "live"}
		if live != nil {
			if a, err = text.ToYamlFile("live", project(live.Object, payload.Object)); err != nil {
				return err
			}
		}

		b, err := text.ToYamlFile("expose", payload.Object)
		if err != nil {
			return err
		}

		diff := text.Diff(a, b, text.DiffOptions{Context: params.Context, Color: params.Color})
		if diff == "" {
			return internal.Warning("no differences found")
		}

		_, err = fmt.Fprint(stdout, diff)
		return err
	}

	navigate := expose.NavigatorFunc(func(path string) {
		fmt.Fprintln(stdout, strings.TrimSuffix(params.ConsoleURL, "/")+path)
	})

	if err := form.Submit(ctx, cluster, navigate); err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if params.Wait > 0 {
		opts := k8s.WaitOptions{Timeout: params.Wait, Interval: params.Poll}
		if err := cluster.WaitForReady(ctx, form.Namespace, form.Name, opts); err != nil {
			return err
		}
	}

	return nil
}

func buildForm(ctx context.Context, cluster Cluster, params CreateParams) (*expose.Form, error) {
	kinds := expose.DefaultSourceKinds
	if params.Kind != "" {
		kind, ok := expose.LookupSourceKind(expose.DefaultSourceKinds, params.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown source kind %q", params.Kind)
		}
		kinds = []expose.SourceKind{kind}
	}

	form := expose.NewForm(cmp.Or(params.Namespace, cluster.ActiveNamespace()), kinds...)
	form.Name = params.Name
	form.ExternalName = params.ExternalName
	form.Headless = params.Headless

	if params.Type != "" {
		serviceType, err := expose.ParseServiceType(params.Type)
		if err != nil {
			return nil, err
		}
		form.Type = serviceType
	}

	if params.SessionAffinity != "" {
		affinity, err := expose.ParseAffinity(params.SessionAffinity)
		if err != nil {
			return nil, err
		}
		form.SessionAffinity = affinity
	}

	if err := form.Ports.ApplyAll(params.Ports); err != nil {
		return nil, err
	}

	loadErr := form.Load(ctx, cluster)
	if loadErr != nil {
		internal.Debug(ctx).Printf("%v\n", loadErr)
	}

	var kind string
	if params.Kind != "" {
		kind = kinds[0].Kind
	}

	if err := form.SelectByName(kind, params.Source); err != nil {
		if kind == "" && loadErr != nil {
			return nil, errors.Join(err, loadErr)
		}
		return nil, err
	}

	return form, nil
}

// project keeps only the parts of live that are declared in desired, so that server
// defaults and status do not show up as differences.
func project(live, desired map[string]any) map[string]any {
	result := make(map[string]any, len(desired))
	for key, want := range desired {
		value, ok := live[key]
		if !ok {
			continue
		}
		result[key] = projectValue(value, want)
	}
	return result
}

func projectValue(value, want any) any {
	switch want := want.(type) {
	case map[string]any:
		if value, ok := value.(map[string]any); ok {
			return project(value, want)
		}
	case []any:
		values, ok := value.([]any)
		if !ok {
			return value
		}
		result := make([]any, len(values))
		for i, elem := range values {
			if i < len(want) {
				result[i] = projectValue(elem, want[i])
			} else {
				result[i] = elem
			}
		}
		return result
	}
	return value
}

// PortSpecs collects repeated -port flags.
type PortSpecs []expose.PortInput

func (specs PortSpecs) String() string {
	values := make([]string, len(specs))
	for i, spec := range specs {
		values[i] = FormatPortSpec(spec)
	}
	return strings.Join(values, ",")
}

func (specs *PortSpecs) Set(value string) error {
	spec, err := ParsePortSpec(value)
	if err != nil {
		return err
	}
	*specs = append(*specs, spec)
	return nil
}

// ParsePortSpec parses [name:]port[:targetPort][/protocol]. Numbers are validated when
// applied to the form.
func ParsePortSpec(value string) (expose.PortInput, error) {
	rest, protocol, _ := strings.Cut(value, "/")

	var input expose.PortInput
	input.Protocol = protocol

	parts := strings.Split(rest, ":")
	switch len(parts) {
	case 1:
		input.Port = parts[0]
	case 2:
		if isNumber(parts[0]) {
			input.Port, input.TargetPort = parts[0], parts[1]
		} else {
			input.Name, input.Port = parts[0], parts[1]
		}
	case 3:
		input.Name, input.Port, input.TargetPort = parts[0], parts[1], parts[2]
	default:
		return expose.PortInput{}, fmt.Errorf("invalid port %q: expected [name:]port[:targetPort][/protocol]", value)
	}

	if input.Port == "" {
		return expose.PortInput{}, fmt.Errorf("invalid port %q: port is required", value)
	}

	return input, nil
}

func FormatPortSpec(spec expose.PortInput) string {
	var builder strings.Builder
	if spec.Name != "" {
		builder.WriteString(spec.Name + ":")
	}
	builder.WriteString(spec.Port)
	if spec.TargetPort != "" {
		builder.WriteString(":" + spec.TargetPort)
	}
	if spec.Protocol != "" {
		builder.WriteString("/" + spec.Protocol)
	}
	return builder.String()
}

func isNumber(value string) bool {
	_, err := strconv.Atoi(value)
	return err == nil
}
