package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/vecstore/internal/dagger"
)

// releasePlatforms are the targets of Build. sqlite-vec is linked through
// cgo, so every platform builds natively inside its own container.
var releasePlatforms = []dagger.Platform{
	"linux/amd64",
	"linux/arm64",
}

// Build compiles cli/vecstore for every release platform and returns a
// directory laid out as <os>/<arch>/vecstore.
func (v *Vecstore) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()

	for _, platform := range releasePlatforms {
		goos, goarch, _ := strings.Cut(string(platform), "/")
		path := fmt.Sprintf("%s/%s/", goos, goarch)

		binary := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+goarch)).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+goarch)).
			WithDirectory("/src", v.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-trimpath", "-ldflags", ldflags, "-o", path + "vecstore", "./cli/vecstore"}).
			File(path + "vecstore")

		outputs = outputs.WithFile(path+"vecstore", binary)
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with version info
// stamped into pkg/utils.
func (v *Vecstore) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	const pkg = "github.com/papercomputeco/vecstore/pkg/utils"

	ldflags := strings.Join([]string{
		"-s", "-w",
		fmt.Sprintf("-X '%s.Version=%s'", pkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", pkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", pkg, time.Now().UTC().Format(time.RFC3339)),
	}, " ")

	return v.Build(ctx, ldflags)
}
