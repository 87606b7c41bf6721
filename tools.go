//go:build tools

package tools

// Build-time generators: 2goarray embeds the icon (pkg/automute/icon), rsrc
// compiles the icon and pkg/automute/cmd/automute.manifest into
// rsrc_windows.syso for the Windows binary.
import (
	_ "github.com/akavel/rsrc"
	_ "github.com/cratonica/2goarray"
)
