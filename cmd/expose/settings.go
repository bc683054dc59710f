package main

import (
	"flag"

	"github.com/davidmdm/expose/internal/home"
)

type GlobalSettings struct {
	KubeConfigPath string
	Debug          bool
}

func RegisterGlobalFlags(flagset *flag.FlagSet, settings *GlobalSettings) {
	flagset.StringVar(&settings.KubeConfigPath, "kubeconfig", home.Kubeconfig, "path to kube config")
	flagset.BoolVar(&settings.Debug, "debug", settings.Debug, "print debug output and timings to stderr")
}
