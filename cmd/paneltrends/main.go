package main

import "panel-trends/internal/cli"

func main() {
	cli.Execute()
}
