package main

import "github.com/KaramelBytes/fracture-cli/cmd"

func main() {
	cmd.Execute()
}
