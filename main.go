package main

import "github.com/agentic-research/spotreach/cmd"

func main() {
	cmd.Execute()
}
