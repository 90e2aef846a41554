package main

import "github.com/oversync/syncgate/internal/cli"

func main() {
	cli.Execute()
}
