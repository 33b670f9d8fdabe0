// Command depscheck fails when a receive-path package imports session
// state. Only the tick loop may see the session; the socket side talks to
// it through the packet queue.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "github.com/jeknom/udp-game-example/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

type rule struct {
	Package   string
	Forbidden string
}

var rules = []rule{
	{Package: modulePath + "/internal/net/intake", Forbidden: modulePath + "/internal/state"},
	{Package: modulePath + "/internal/net/udp", Forbidden: modulePath + "/internal/state"},
	{Package: modulePath + "/internal/sim", Forbidden: modulePath + "/internal/state"},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if found := violations(pkgs, rules); len(found) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(output []byte) ([]packageInfo, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func violations(pkgs []packageInfo, rules []rule) []string {
	var out []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if pkg.ImportPath != r.Package && !strings.HasPrefix(pkg.ImportPath, r.Package+"/") {
				continue
			}
			for _, imp := range pkg.Imports {
				if imp == r.Forbidden || strings.HasPrefix(imp, r.Forbidden+"/") {
					out = append(out, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
