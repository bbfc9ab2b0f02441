// Command graphpack stores and restores entity graphs.
package main

import "github.com/graphpack/cmd/graphpack/cmd"

func main() {
	cmd.Execute()
}
