package main

import "stocklink/cmd"

func main() {
	cmd.Execute()
}
