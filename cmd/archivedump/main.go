// Command archivedump inspects a recorded archive file: it lists entries
// or dumps a single response body to stdout.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

func main() {
	verbose := flag.Bool("v", false, "print request headers for each entry")
	dumpKey := flag.String("dump", "", "write the response body for the entry with this key to stdout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: archivedump [-v] [-dump key] <archive.json>\n")
		os.Exit(2)
	}

	archive, err := httparchive.Load(flag.Arg(0))
	if err != nil {
		slog.Error("Failed to load archive", "error", err)
		os.Exit(1)
	}

	if *dumpKey != "" {
		dump(archive, *dumpKey)
		return
	}

	for _, req := range archive.Requests() {
		resp, _ := archive.Get(req)
		fmt.Printf("%-60s %d %s (%d bytes, %d chunks)\n",
			req.Key(), resp.Status, resp.GetHeader("Content-Type"), len(resp.Body()), len(resp.Chunks))
		if *verbose {
			fmt.Print(req.Verbose())
		}
	}
	fmt.Printf("%d entries\n", archive.Len())
}

func dump(archive *httparchive.Archive, key string) {
	for _, req := range archive.Requests() {
		if req.Key() != key {
			continue
		}
		resp, _ := archive.Get(req)
		if _, err := os.Stdout.Write(resp.Body()); err != nil {
			slog.Error("Write failed", "error", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "no entry for key %q\n", key)
	os.Exit(1)
}
