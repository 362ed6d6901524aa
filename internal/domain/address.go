package domain

import (
	"net/url"
	"strings"
)

// JoinURL appends path segments to base. Each segment is escaped on its
// own, so a segment containing "/" or ".." stays a single segment.
// base is not modified.
func JoinURL(base *url.URL, segments ...string) *url.URL {
	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	path := strings.TrimSuffix(base.Path, "/")
	rawPath := strings.TrimSuffix(base.EscapedPath(), "/")
	for _, s := range segments {
		path += "/" + s
		rawPath += "/" + url.PathEscape(s)
	}
	u.Path = path
	u.RawPath = rawPath
	return &u
}

// RealtimeURL derives the WebSocket address for a user from the API
// endpoint: {ws|wss}://host/<api path>/ws/{username}. The secure scheme is
// used iff the API endpoint is https.
func RealtimeURL(api *url.URL, username Username) *url.URL {
	u := JoinURL(api, "ws", username.String())
	if strings.EqualFold(api.Scheme, "https") {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u
}
