package main

import "github.com/kozaktomas/add-me-in/cmd"

func main() {
	cmd.Execute()
}
