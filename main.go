package main

import "github.com/kebairia/mongocli/cmd"

func main() {
	cmd.Execute()
}
