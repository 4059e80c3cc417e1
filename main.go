package main

import (
	"interviewprep/cmd"
)

func main() {
	cmd.Execute()
}
