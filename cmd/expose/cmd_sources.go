package main

import (
	"cmp"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/davidmdm/expose/internal"
	"github.com/davidmdm/expose/internal/k8s"
	"github.com/davidmdm/expose/pkg/expose"
)

type SourcesParams struct {
	GlobalSettings
	Namespace string
}

//go:embed cmd_sources_help.txt
var sourcesHelp string

func init() {
	sourcesHelp = strings.TrimSpace(internal.Colorize(sourcesHelp))
}

func GetSourcesParams(settings GlobalSettings, args []string) (*SourcesParams, error) {
	flagset := flag.NewFlagSet("sources", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), sourcesHelp)
		flagset.PrintDefaults()
	}

	params := SourcesParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.StringVar(&params.Namespace, "namespace", "", "namespace to list sources in. Defaults to the namespace of the current context")

	flagset.Parse(args)

	return &params, nil
}

func Sources(ctx context.Context, params SourcesParams) error {
	client, err := k8s.NewClientFromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate k8 client: %w", err)
	}
	return sources(ctx, client, params)
}

func sources(ctx context.Context, cluster Cluster, params SourcesParams) error {
	form := expose.NewForm(cmp.Or(params.Namespace, cluster.ActiveNamespace()))

	if err := form.Load(ctx, cluster); err != nil {
		internal.Debug(ctx).Printf("%v\n", err)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)

	tbl.AppendHeader(table.Row{"kind", "name", "selector"})

	var found int
	for _, source := range form.Sources {
		switch {
		case source.Err != "":
			tbl.AppendRow(table.Row{source.Kind.Kind, "", "error: " + source.Err})
		case len(source.Items) == 0:
			tbl.AppendRow(table.Row{source.Kind.Kind, "", fmt.Sprintf("no %s in namespace %s", source.Kind.Kind, form.Namespace)})
		default:
			for _, item := range source.Items {
				tbl.AppendRow(table.Row{source.Kind.Kind, item.GetName(), formatSelector(item)})
			}
			found += len(source.Items)
		}
	}

	if _, err := io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n"); err != nil {
		return err
	}

	if found == 0 {
		return internal.Warning(fmt.Sprintf("no sources found in namespace %s", form.Namespace))
	}

	return nil
}

func formatSelector(item *unstructured.Unstructured) string {
	selector, err := expose.SelectorOf(item)
	if err != nil {
		return "error: " + err.Error()
	}
	return labels.Set(selector).String()
}
