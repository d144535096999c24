package main

import "nathanbeddoewebdev/mcfleet/cmd"

func main() {
	cmd.Execute()
}
