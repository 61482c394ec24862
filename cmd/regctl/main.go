package main

import "regdocs-rag/internal/cli"

func main() {
	cli.Execute()
}
