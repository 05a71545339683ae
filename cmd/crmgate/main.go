package main

import "github.com/vietddude/crmgate/internal/cli"

func main() {
	cli.Execute()
}
