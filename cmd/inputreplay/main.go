package main

import "github.com/okian/inputreplay/internal/cli"

func main() {
	cli.Execute()
}
