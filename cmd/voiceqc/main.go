package main

import (
	"os"

	"voiceqc.dev/voiceqc/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
