package main

import "github.com/faasm/faabric/build-tools/cmd"

func main() {
	cmd.Execute()
}
