package main

import (
	"cmp"

	"github.com/davidmdm/conf"
)

const defaultAddr = ":3000"

type Config struct {
	Addr       string
	KubeConfig string
}

// getConfig reads the console backend configuration from the environment. The
// kubeconfig falls back to the global -kubeconfig flag.
func getConfig(settings GlobalSettings) (cfg Config, err error) {
	conf.Var(conf.Environ, &cfg.Addr, "EXPOSE_ADDR", conf.Required[string](false))
	conf.Var(conf.Environ, &cfg.KubeConfig, "EXPOSE_KUBECONFIG", conf.Required[string](false))
	err = conf.Environ.Parse()

	cfg.Addr = cmp.Or(cfg.Addr, defaultAddr)
	cfg.KubeConfig = cmp.Or(cfg.KubeConfig, settings.KubeConfigPath)

	return
}
