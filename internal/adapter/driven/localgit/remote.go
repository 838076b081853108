package localgit

import "strings"

// parseRemote extracts "owner/name" from a git remote URL. All the remote
// shapes git itself accepts for GitHub hosts reduce to host/owner/name once
// the scheme, user info, and scp-style colon are stripped:
//
//	git@github.com:owner/name.git
//	ssh://git@github.com/owner/name.git
//	ssh://git@github.com:22/owner/name.git
//	https://github.com/owner/name
//	git://github.com/owner/name.git
func parseRemote(remote string) (string, bool) {
	r := strings.TrimSpace(remote)
	if i := strings.Index(r, "://"); i >= 0 {
		r = r[i+3:]
	}
	if i := strings.Index(r, "@"); i >= 0 {
		r = r[i+1:]
	}
	r = strings.Replace(r, ":", "/", 1)
	r = strings.TrimSuffix(r, "/")
	r = strings.TrimSuffix(r, ".git")

	parts := strings.Split(r, "/")
	if len(parts) < 3 {
		return "", false
	}
	// The first segment must look like a host, which also rejects local
	// filesystem remotes.
	if host := parts[0]; !strings.Contains(host, ".") || strings.HasPrefix(host, ".") {
		return "", false
	}

	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", false
	}
	return owner + "/" + name, true
}
