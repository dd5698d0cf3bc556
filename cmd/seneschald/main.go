// Command seneschald is the retrieval and tool-dispatch backend for a
// tabletop role-playing assistant.
package main

import (
	"fmt"
	"os"

	"github.com/jhelwig/seneschal-program-sub001/cmd/seneschald/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
