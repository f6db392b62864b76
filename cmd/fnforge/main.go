// Package main implements the fnforge CLI tool.
// It deploys function endpoints from a declarative deployment plan.
package main

import "github.com/fnforge/fnforge/cmd/fnforge/cmd"

func main() {
	cmd.Execute()
}
