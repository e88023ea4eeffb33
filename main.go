package main

import "github.com/sabrinaorban/sabrina-and-travis-code-sub001/cli"

func main() {
	cli.Execute()
}
