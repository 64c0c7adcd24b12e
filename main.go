package main

import "terminus/cmd"

func main() {
	cmd.Execute()
}
