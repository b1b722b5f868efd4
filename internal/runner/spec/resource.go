// Package spec defines the values exchanged with the container runner.
package spec

import (
	"strings"

	appErr "statebox/pkg/errors"

	"github.com/distribution/reference"
)

// SchemeDocker is the only resource scheme the runner accepts.
const SchemeDocker = "docker"

const schemeSeparator = "://"

// ResourceLocator is a parsed docker://<image>[:<tag>] resource reference.
type ResourceLocator struct {
	Scheme string
	// Image is the reference exactly as written after the scheme.
	Image string
	// Name is the repository part of Image in its familiar form.
	Name   string
	Tag    string
	Digest string
}

// String renders the locator back into its URI form.
func (l ResourceLocator) String() string {
	return l.Scheme + schemeSeparator + l.Image
}

// ParseResource parses a resource URI. Any URI that is empty, uses a
// scheme other than docker, or carries an unparseable image reference
// yields an InvalidResource error.
func ParseResource(uri string) (ResourceLocator, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ResourceLocator{}, invalidResource(uri, "resource is required")
	}
	scheme, image, ok := strings.Cut(uri, schemeSeparator)
	if !ok {
		return ResourceLocator{}, invalidResource(uri, "missing scheme")
	}
	if scheme != SchemeDocker {
		return ResourceLocator{}, invalidResource(uri, "unsupported scheme")
	}
	if image == "" {
		return ResourceLocator{}, invalidResource(uri, "missing image")
	}

	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return ResourceLocator{}, invalidResource(uri, err.Error())
	}

	loc := ResourceLocator{
		Scheme: scheme,
		Image:  image,
		Name:   reference.FamiliarName(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		loc.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		loc.Digest = digested.Digest().String()
	}
	return loc, nil
}

func invalidResource(uri, reason string) *appErr.Error {
	return appErr.New(appErr.InvalidResource).
		WithDetail("resource", uri).
		WithDetail("reason", reason)
}
