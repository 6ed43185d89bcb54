package main

import (
	"fmt"
	"strings"
	"time"

	"context"

	"dagger/recall/internal/dagger"
)

// Build and return directory of go binaries
func (t *Recall) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// Build matrix is linux-only: the sqlite-vec driver needs CGO, so each
	// target arch needs a cross gcc.
	goarches := map[string]string{
		"amd64": "gcc",
		"arm64": "aarch64-linux-gnu-gcc",
	}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	golang := dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "gcc-aarch64-linux-gnu", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("GOEXPERIMENT", "jsonv2").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", t.Source).
		WithWorkdir("/src")

	for goarch, cc := range goarches {
		// create directory for each architecture
		path := fmt.Sprintf("linux/%s/", goarch)

		// build artifact
		build := golang.
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", goarch).
			WithEnvVariable("CC", cc).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/recall"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (t *Recall) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/recall/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/recall/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/recall/pkg/utils.Buildtime=%s'", buildtime),
	}

	return t.Build(ctx, strings.Join(ldflags, " "))
}
