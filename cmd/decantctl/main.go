package main

import "github.com/RBarbieri13/Decant-sub001/internal/cli"

func main() {
	cli.Execute()
}
