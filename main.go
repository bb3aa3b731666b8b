package main

import "github.com/ricardomdn/broll/internal/cli"

func main() {
	cli.Main()
}
