package dragon

import "embed"

// Runtime holds the C sources that implement the BaseObject/ref-counting
// contract every generated program links against (§6.2). Embedded the same
// way genc.go bundles its own VM runtime via go:embed.
//
//go:embed c/dragon.h c/dragon.c
var runtimeFS embed.FS

// RuntimeHeader returns the contents of dragon.h, included by every
// generated .c/.h file and by the header of the program's main unit.
func RuntimeHeader() (string, error) {
	b, err := runtimeFS.ReadFile("c/dragon.h")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RuntimeSource returns the contents of dragon.c, compiled alongside the
// generated units when producing a final binary.
func RuntimeSource() (string, error) {
	b, err := runtimeFS.ReadFile("c/dragon.c")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
