package version

import (
	"fmt"
	"io"
	"os"
)

// Package returns the overall, canonical project import path under
// which the package was built.
func Package() string {
	return mainpkg
}

// Version returns the module version the running binary was built from.
func Version() string {
	return version
}

// Revision returns the VCS revision being used to build the program at
// linking time.
func Revision() string {
	return revision
}

// FprintVersion outputs the version string to the writer, followed by a
// newline:
//
//	mapsign github.com/mapsign/mapsign v0.1.0 <revision>
//
// The revision is omitted when unknown.
func FprintVersion(w io.Writer) {
	if Revision() == "" {
		fmt.Fprintln(w, os.Args[0], Package(), Version())
		return
	}
	fmt.Fprintln(w, os.Args[0], Package(), Version(), Revision())
}

// PrintVersion outputs the version information, from Fprint, to stdout.
func PrintVersion() {
	FprintVersion(os.Stdout)
}
