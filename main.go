// The main package for the pagecrawl executable.
package main

import (
	"github.com/JakeFAU/pagecrawl/cmd"
)

func main() {
	cmd.Execute()
}
