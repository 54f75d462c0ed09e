package version

// mainpkg is the overall, canonical project import path under which the
// package was built.
var mainpkg = "github.com/mapsign/mapsign"

// version indicates which version of the binary is running. During build it
// is replaced with -ldflags "-X github.com/mapsign/mapsign/version.version=...".
var version = "v0.1.0+unknown"

// revision is filled with the VCS (e.g. git) revision being used to build
// the program at linking time.
var revision = ""
