// Command httpd-server is the runnable reference binary exercising
// internal/httpcore, internal/httpserver, webdav and internal/upload end
// to end, grounded in IYouKnow-Atlas-Storage's cmd/atlas entry point.
package main

import (
	"log"

	"github.com/embedwebd/httpd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
