package main

import (
	"os"

	"northpointtriallaw.com/opsdash/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
