package registry

import (
	"io"
	"strings"
)

func jsonschemaReader(doc string) io.Reader {
	return strings.NewReader(doc)
}
