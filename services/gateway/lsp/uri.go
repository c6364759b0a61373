// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI converts a file path to a file:// URI.
//
// Description:
//
//	Converts relative paths to absolute and properly encodes special
//	characters in the path.
func PathToURI(path string) string {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
	}

	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}
	return u.String()
}

// URIToPath converts a file:// URI to an absolute file path.
//
// Description:
//
//	Properly decodes URL-encoded characters in the URI path.
func URIToPath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path
	}
	// Fallback for simple URIs
	return strings.TrimPrefix(uri, "file://")
}

// ParseLocations parses a Location, LocationLink, or array response.
//
// Description:
//
//	Peers answer definition-family requests with any of: null, a single
//	Location, an array of Locations, or an array of LocationLinks.
//	Normalizes all shapes to a Location slice.
func ParseLocations(data json.RawMessage) ([]Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	if data[0] == '[' {
		// LocationLink arrays carry a targetUri field
		var links []LocationLink
		if err := json.Unmarshal(data, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
			locations := make([]Location, len(links))
			for i, link := range links {
				locations[i] = Location{
					URI:   link.TargetURI,
					Range: link.TargetSelectionRange,
				}
			}
			return locations, nil
		}

		var locations []Location
		if err := json.Unmarshal(data, &locations); err != nil {
			return nil, ErrInvalidResponse
		}
		return locations, nil
	}

	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, ErrInvalidResponse
	}
	return []Location{loc}, nil
}
