package main

import "thoreinstein.com/scommit/cmd"

func main() {
	cmd.Execute()
}
