// The main package for the upload-runner executable.
package main

import "github.com/JakeFAU/upload-runner/cmd"

func main() {
	cmd.Execute()
}
