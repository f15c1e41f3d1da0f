package main

import "transcript-tool/internal/cli"

func main() {
	cli.Main()
}
