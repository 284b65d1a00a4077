package main

import (
	"os"

	vecstorecmder "github.com/papercomputeco/vecstore/cmd/vecstore"
)

func main() {
	cmd := vecstorecmder.NewVecstoreCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
