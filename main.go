package main

import "github.com/Seann-Moser/servod/cmd"

func main() {
	cmd.Execute()
}
