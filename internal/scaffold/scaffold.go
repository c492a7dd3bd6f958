// Package scaffold holds the platform files overlaid onto every exported
// program: the deployment descriptor, the build-control file, the root
// program descriptor and one application template per service type under
// app/<type>/.
package scaffold

import (
	"embed"
	"io/fs"
	"os"
	"path"
)

const (
	DescriptorFile   = "dotcloud.yml"
	BuildControlFile = ".Makefile"
	ProgramFile      = ".program.json"
	PackageFile      = "package.json"
	AppTemplatesDir  = "app"
)

//go:embed all:default
var files embed.FS

// Default returns the built-in scaffold.
func Default() fs.FS {
	sub, err := fs.Sub(files, "default")
	if err != nil {
		panic(err)
	}
	return sub
}

// Load returns the scaffold rooted at dir, or the built-in one when dir is
// empty.
func Load(dir string) fs.FS {
	if dir == "" {
		return Default()
	}
	return os.DirFS(dir)
}

// AppTemplate returns the application template directory for a service type.
func AppTemplate(serviceType string) string {
	return path.Join(AppTemplatesDir, serviceType)
}

// Template reads the scaffold's deployment descriptor.
func Template(fsys fs.FS) ([]byte, error) {
	return fs.ReadFile(fsys, DescriptorFile)
}
