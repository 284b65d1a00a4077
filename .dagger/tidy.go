package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/vecstore/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum, or
// when a downloaded module does not match go.sum.
//
// +check
func (v *Vecstore) CheckGoModTidy(ctx context.Context) (string, error) {
	const script = `set -e
cp go.mod /tmp/go.mod.orig
cp go.sum /tmp/go.sum.orig
go mod tidy
go mod verify
diff -u /tmp/go.mod.orig go.mod
diff -u /tmp/go.sum.orig go.sum`

	out, err := v.goContainer().
		WithExec([]string{"sh", "-c", script}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("module files are not tidy, run 'go mod tidy' and commit the result:\n\n%s%s", execErr.Stdout, execErr.Stderr)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	return "go.mod and go.sum are tidy\n" + out, nil
}
