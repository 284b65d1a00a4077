package main

import (
	"context"

	"dagger/vecstore/internal/dagger"
)

const golangciLint = "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@v2.8.0"

// linter layers golangci-lint, configured by .golangci.yml, over
// goContainer so cgo packages type-check.
func (v *Vecstore) linter() *dagger.Golangcilint {
	return dag.Golangcilint(v.Source, dagger.GolangcilintOpts{
		BaseCtr: v.goContainer().WithExec([]string{"go", "install", golangciLint}),
		Config:  v.Source.File(".golangci.yml"),
	})
}

// CheckLint reports lint findings without changing the source.
//
// +check
func (v *Vecstore) CheckLint(ctx context.Context) (string, error) {
	return v.linter().Check(ctx)
}

// FixLint applies golangci-lint's automatic fixes and returns the changed
// source directory.
func (v *Vecstore) FixLint(ctx context.Context) *dagger.Directory {
	return v.linter().Lint()
}
