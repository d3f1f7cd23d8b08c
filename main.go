package main

import "github.com/kiesman99/bigview/cmd"

func main() {
	cmd.Execute()
}
