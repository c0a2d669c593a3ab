package main

import "roadnerd/cmd"

func main() {
	cmd.Execute()
}
