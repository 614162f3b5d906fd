package main

import "github.com/etaoni/qci/internal/cmd"

func main() {
	cmd.Execute()
}
