package main

import "github.com/OpenTraceLab/ftjtag/cmd/ftjtag/cmd"

func main() {
	cmd.Execute()
}
