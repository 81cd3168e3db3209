package main

import "github.com/veridian-dash/veridian/cmd"

func main() {
	cmd.Execute()
}
