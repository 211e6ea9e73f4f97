package main

import "github.com/revrun/revrun/cmd"

func main() {
	cmd.Execute()
}
