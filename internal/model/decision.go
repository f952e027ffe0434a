package model

import "path/filepath"

// PathDecision is the resolved destination for a classified document.
// Dir is absolute; Filename carries no path separators and keeps the
// source extension. Rule names the template or override that produced it.
type PathDecision struct {
	Dir      string
	Filename string
	Rule     string
}

// Path returns the full destination path.
func (d PathDecision) Path() string {
	return filepath.Join(d.Dir, d.Filename)
}
