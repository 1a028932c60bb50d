package main

import "github.com/quantfold/crossarb/cmd"

func main() {
	cmd.Execute()
}
