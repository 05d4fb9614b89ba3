package intake

import _ "embed"

// Version is the release of the intake module, read from the VERSION file.
//
//go:embed VERSION
var Version string
