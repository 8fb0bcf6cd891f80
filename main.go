package main

import "github.com/kozaktomas/face-review/cmd"

func main() {
	cmd.Execute()
}
