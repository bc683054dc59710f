package home

import (
	"cmp"
	"os"
	"path/filepath"
)

var (
	Dir        string
	Kubeconfig string
)

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	Dir = home
	Kubeconfig = cmp.Or(os.Getenv("KUBECONFIG"), filepath.Join(home, ".kube/config"))
}
