//go:build !nogomlx

package main

// Include GoMLX backends.

import (
	_ "github.com/gomlx/gomlx/backends/simplego"
	_ "github.com/gomlx/gomlx/backends/xla"
)
