package persistence

import (
	"path/filepath"
	"strconv"
)

// Layout implements spec.md §4.7's filesystem layout:
//
//	<root>/<workspaceId>/head.json
//	<root>/<workspaceId>/head.yjs
//	<root>/<workspaceId>/<epoch>/workspace.yjs
//	<root>/<workspaceId>/<epoch>/workspace.json
//	<root>/<workspaceId>/<epoch>/definition.json
//
// All paths are relative to the configured root directory; this port
// joins them with filepath.Join, which uses the platform separator
// (spec.md §6).
func (e *Extension) headDir() string {
	return filepath.Join(e.rootDir, e.workspaceID)
}

func (e *Extension) headJSONPath() string {
	return filepath.Join(e.headDir(), "head.json")
}

func (e *Extension) headBinaryPath() string {
	return filepath.Join(e.headDir(), "head.yjs")
}

func (e *Extension) epochDir() string {
	return filepath.Join(e.headDir(), strconv.Itoa(e.epoch))
}

func (e *Extension) epochBinaryPath() string {
	return filepath.Join(e.epochDir(), "workspace.yjs")
}

func (e *Extension) epochJSONPath() string {
	return filepath.Join(e.epochDir(), "workspace.json")
}

func (e *Extension) definitionPath() string {
	return filepath.Join(e.epochDir(), "definition.json")
}
