// The main package for the camera-pdf-scraper executable.
package main

import (
	"github.com/dj-urg/camera-pdf-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
