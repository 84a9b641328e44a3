//go:generate bash -c "if [ ! -f go.mod ]; then echo 'Initializing go.mod...'; go mod init .containifyci; else echo 'go.mod already exists. Skipping initialization.'; fi"
//go:generate go get github.com/containifyci/engine-ci/protos2
//go:generate go get github.com/containifyci/engine-ci/client
//go:generate go mod tidy

package main

import (
	"os"

	"github.com/containifyci/engine-ci/client/pkg/build"
	"github.com/containifyci/engine-ci/protos2"
)

func registryAuth() map[string]*protos2.ContainerRegistry {
	return map[string]*protos2.ContainerRegistry{
		"ghcr.io": {
			Username: "USERNAME",
			Password: "env:GHCR_TOKEN",
		},
	}
}

func main() {
	os.Chdir("../")
	loginClient := build.NewGoServiceBuild("assertion-login-client")
	loginClient.Image = ""
	loginClient.File = "cmd/client/main.go"
	loginClient.Properties = map[string]*build.ListValue{
		"goreleaser": build.NewList("true"),
	}

	loginServer := build.NewGoServiceBuild("assertion-login-server")
	loginServer.File = "cmd/server/main.go"
	loginServer.Registries = registryAuth()
	build.BuildAsync(loginClient, loginServer)
}
