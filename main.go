package main

import "github.com/helixbot/helixbot/cmd"

func main() {
	cmd.Execute()
}
