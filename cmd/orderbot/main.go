package main

import "github.com/kethal/orderbot/internal/cli"

func main() {
	cli.Execute()
}
