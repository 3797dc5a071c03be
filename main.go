package main

import "github.com/deploymenttheory/go-uvf/cmd"

func main() {
	cmd.Execute()
}
