//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	BINARY_DIR  = "bin"
	BINARY_NAME = "relay-server"
	IMAGE_NAME  = "collab-relay"
)

var Default = Build

// Build compiles the relay server into bin/.
func Build() error {
	mg.Deps(Tidy)
	if err := os.MkdirAll(BINARY_DIR, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", fmt.Sprintf("%s/%s", BINARY_DIR, BINARY_NAME), "./cmd/relay-server")
}

// Generate renders api/room.proto into the openapi document and the echo
// server of pkg/controller/room. googleapis protos are expected under
// $GOOGLEAPIS_DIR.
func Generate() error {
	if err := os.MkdirAll(BINARY_DIR, 0o755); err != nil {
		return err
	}
	if err := sh.RunV("go", "build", "-o", fmt.Sprintf("%s/protoc-gen-openapi", BINARY_DIR), "github.com/google/gnostic/cmd/protoc-gen-openapi"); err != nil {
		return err
	}
	err := sh.RunV("protoc",
		fmt.Sprintf("--plugin=protoc-gen-openapi=%s/protoc-gen-openapi", BINARY_DIR),
		"--proto_path=api",
		fmt.Sprintf("--proto_path=%s", os.Getenv("GOOGLEAPIS_DIR")),
		"--openapi_out=api/openapi",
		"--openapi_opt=naming=json,default_response=false",
		"api/room.proto",
	)
	if err != nil {
		return err
	}
	if err := os.Rename("api/openapi/openapi.yaml", "api/openapi/room.yaml"); err != nil {
		return err
	}
	return sh.RunV("go", "generate", "./pkg/controller/...")
}

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the whole suite with the race detector.
func Test() error {
	mg.Deps(Vet)
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Run starts the server with the .env from the project root.
func Run() error {
	mg.Deps(Build)
	return sh.RunV(fmt.Sprintf("./%s/%s", BINARY_DIR, BINARY_NAME))
}

type Docker mg.Namespace

// Build builds the server image with buildx and loads it into the local daemon.
func (Docker) Build() error {
	return sh.RunV("docker", "buildx", "build",
		"--target", BINARY_NAME,
		"--tag", fmt.Sprintf("%s:latest", IMAGE_NAME),
		"--load",
		".",
	)
}

// Push tags the local image for registry and pushes it.
func (Docker) Push(registry string) error {
	mg.Deps(Docker.Build)
	remote := fmt.Sprintf("%s/%s:latest", registry, IMAGE_NAME)
	if err := sh.Run("docker", "tag", fmt.Sprintf("%s:latest", IMAGE_NAME), remote); err != nil {
		return err
	}
	return sh.RunV("docker", "push", remote)
}
