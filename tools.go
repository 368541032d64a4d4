//go:build tools
// +build tools

// Package tools pins the code generators used by go:generate (mockgen for
// contract mocks) so a fresh checkout resolves them from go.mod.
package chat_room

import (
	_ "go.uber.org/mock/mockgen"
)
