package main

import "stopfill/cmd/stopfill/cmd"

func main() {
	cmd.Execute()
}
