package main

import "futureslab/internal/cli"

func main() {
	cli.Execute()
}
