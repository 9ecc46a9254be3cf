package templates

import "net/url"

// sessionPath returns the route for action on session id.
func sessionPath(id, action string) string {
	return "/session/" + url.PathEscape(id) + "/" + action
}
