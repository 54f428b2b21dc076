// Package buildinfo exposes build metadata for relicpack and resolves the
// version stamped into packaged artifacts when the manifest does not pin one.
package buildinfo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

// Set with -ldflags "-X github.com/relicrush/relicpack/internal/buildinfo.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String formats the build metadata as a single line.
func String() string {
	return fmt.Sprintf("relicpack %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// ResolveVersion derives an artifact version from the git repository containing dir.
// A tag pointing at HEAD wins (leading "v" stripped); otherwise the short HEAD hash
// is returned as "0.0.0-dev.<sha>". Without a repository the timestamp is used.
func ResolveVersion(dir string, now time.Time) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "0.0.0-dev." + now.Format("20060102150405")
	}
	head, err := repo.Head()
	if err != nil {
		return "0.0.0-dev." + now.Format("20060102150405")
	}
	if tag, err := tagAt(repo, head.Hash()); err == nil && tag != "" {
		return strings.TrimPrefix(tag, "v")
	}
	sha := head.Hash().String()
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return "0.0.0-dev." + sha
}

var errStop = errors.New("stop")

func tagAt(repo *git.Repository, commit plumbing.Hash) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", err
	}
	defer iter.Close()

	found := ""
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		// Annotated tags point at a tag object rather than the commit.
		if obj, errTag := repo.TagObject(target); errTag == nil {
			target = obj.Target
		}
		if target == commit {
			found = ref.Name().Short()
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", err
	}
	return found, nil
}
