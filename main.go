package main

import "github.com/edgeprobe/edgedns/cmd"

func main() {
	cmd.Execute()
}
