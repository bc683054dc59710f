package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/davidmdm/expose/internal"
)

func Version(ctx context.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("build info unavailable")
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)

	tbl.AppendRow(table.Row{"expose", info.Main.Version})

	for _, mod := range info.Deps {
		if !slices.Contains([]string{"k8s.io/client-go", "k8s.io/api"}, mod.Path) {
			continue
		}
		tbl.AppendRow(table.Row{mod.Path, mod.Version})
	}

	_, err := fmt.Fprintln(internal.Stdout(ctx), tbl.Render())
	return err
}
