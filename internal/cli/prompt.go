package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads the file type and URL list interactively from a line-oriented reader.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// FileType asks for the type label and returns it trimmed and lower-cased.
func (p *prompter) FileType() string {
	fmt.Fprint(p.out, "Enter file type you want to download (e.g. txt, pdf, csv): ")
	if !p.scanner.Scan() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.scanner.Text()))
}

// URLs reads lines until "done" or end of input. Blank lines are ignored.
func (p *prompter) URLs() []string {
	fmt.Fprintln(p.out, "Paste the URLs (one per line). Type 'done' when finished:")
	var urls []string
	for {
		fmt.Fprint(p.out, "> ")
		if !p.scanner.Scan() {
			fmt.Fprintln(p.out)
			return urls
		}
		line := strings.TrimSpace(p.scanner.Text())
		if strings.EqualFold(line, "done") {
			return urls
		}
		if line != "" {
			urls = append(urls, line)
		}
	}
}
