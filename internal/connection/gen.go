//go:build generate
// +build generate

package connection

import (

	// Import to force a dependency
	_ "golang.org/x/tools/cmd/stringer"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=StateID -output=stateid_string.go
