package main

import "github.com/tutorgate/tutorgate/cmd"

func main() {
	cmd.Execute()
}
