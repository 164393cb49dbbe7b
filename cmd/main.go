package main

import "mt5-connect/cli"

func main() {
	cli.Execute()
}
