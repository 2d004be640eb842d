// Command e4s-cl is a container launcher for MPI applications on HPC
// clusters: it discovers a host MPI runtime's shared libraries, then
// injects them into a container at launch time so a container built
// against a different MPI can still run under the host's network
// stack.
package main

import (
	"github.com/E4S-Project/e4s-cl/cmd/internal/cli"
)

func main() {
	cli.Execute()
}
