// Command planstore manages delivery plans in a local plan store.
package main

import "github.com/mesh-intelligence/planstore/internal/cli"

func main() {
	cli.Execute()
}
