package main

import "multi_downloader/internal/cli"

func main() {
	cli.Execute()
}
