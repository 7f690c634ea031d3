// Package web holds the editor page and the HTML fragments rendered into
// Datastar responses.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/fragments/*.html templates/editor.html
var files embed.FS

// Fragments returns the fragment templates rooted at their directory.
func Fragments() fs.FS {
	sub, err := fs.Sub(files, "templates/fragments")
	if err != nil {
		panic(err)
	}
	return sub
}

// EditorPage returns the editor page.
func EditorPage() []byte {
	b, err := files.ReadFile("templates/editor.html")
	if err != nil {
		panic(err)
	}
	return b
}
