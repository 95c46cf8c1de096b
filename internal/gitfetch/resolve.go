package gitfetch

import (
	"net/url"
	"regexp"
	"strings"

	"skillshub/internal/faults"
)

// Source is a normalized skill location inside a git repository. Ref
// and Subpath are empty for a bare repository URL, meaning the default
// branch and the repository root.
type Source struct {
	Repo     string `json:"repo"`
	Ref      string `json:"ref"`
	Subpath  string `json:"subpath"`
	RepoName string `json:"repo_name"`
}

var scpLikeRE = regexp.MustCompile(`^([A-Za-z0-9._-]+)@([A-Za-z0-9._-]+):(.+)$`)

// Resolve parses either a bare repository URL (skill at repo root) or
// a folder URL of the form https://host/owner/repo/tree/ref/subpath
// encoding a branch and a directory inside it.
func Resolve(raw string) (*Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, faults.New(faults.Validation, "empty repository URL")
	}

	// scp-style git@host:owner/repo.git has no scheme and never
	// carries a /tree/ segment.
	if m := scpLikeRE.FindStringSubmatch(raw); m != nil && !strings.Contains(raw, "://") {
		path := strings.Trim(m[3], "/")
		if path == "" {
			return nil, faults.New(faults.Validation, "repository URL has no path: %s", raw)
		}
		return &Source{Repo: raw, RepoName: repoName(path)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, faults.Wrap(faults.Validation, err, "malformed repository URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ssh" && u.Scheme != "git" {
		return nil, faults.New(faults.Validation, "unsupported URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, faults.New(faults.Validation, "repository URL has no host: %s", raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, faults.New(faults.Validation, "repository URL needs owner and repository: %s", raw)
	}

	owner, repo := segments[0], segments[1]
	src := &Source{
		Repo:     u.Scheme + "://" + u.Host + "/" + owner + "/" + repo,
		RepoName: repoName(repo),
	}

	// Folder URL: /owner/repo/tree/<ref>/<subpath...>
	if len(segments) >= 4 && segments[2] == "tree" {
		src.Ref = segments[3]
		if len(segments) > 4 {
			src.Subpath = strings.Join(segments[4:], "/")
		}
	} else if len(segments) > 2 {
		return nil, faults.New(faults.Validation, "unrecognized repository URL form: %s", raw)
	}

	return src, nil
}

func repoName(path string) string {
	name := path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
