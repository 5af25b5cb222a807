package resolver

import (
	"regexp"
	"strings"
)

// Shape is the syntactic kind of a module request.
type Shape int

const (
	// ShapeBare is a plain package specifier such as "react" or "@scope/pkg/sub".
	ShapeBare Shape = iota
	// ShapeRelative starts with "./" or "../" (or is exactly "." / "..").
	ShapeRelative
	// ShapeAbsolute starts with "/", a drive letter or a UNC prefix.
	ShapeAbsolute
	// ShapePrefix ends with "/" and matches any request below it.
	ShapePrefix
)

var (
	reRelativeRequest = regexp.MustCompile(`^\.\.?(/|$)`)
	reAbsolutePath    = regexp.MustCompile(`^(/|[A-Za-z]:\\|\\\\)`)
)

func (s Shape) String() string {
	switch s {
	case ShapeRelative:
		return "relative"
	case ShapeAbsolute:
		return "absolute"
	case ShapePrefix:
		return "prefix"
	default:
		return "bare"
	}
}

// Classify returns the shape of request. Rules are checked in order:
// relative, absolute, prefix, bare.
func Classify(request string) Shape {
	switch {
	case reRelativeRequest.MatchString(request):
		return ShapeRelative
	case reAbsolutePath.MatchString(request):
		return ShapeAbsolute
	case strings.HasSuffix(request, "/"):
		return ShapePrefix
	default:
		return ShapeBare
	}
}
