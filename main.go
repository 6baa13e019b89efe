package main

import "github.com/maxgio92/stacksampler/cmd"

func main() {
	cmd.Execute()
}
