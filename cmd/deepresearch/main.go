// Command deepresearch is the CLI entry point for the research crawler.
package main

import "github.com/probelab/deepresearch/cmd"

func main() {
	cmd.Execute()
}
