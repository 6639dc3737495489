package dataset

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// shardName matches WebDataset shard files such as shard-000042.tar.
var shardName = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards lists the shard files beneath a dataset root, in lexical path order.
// Hidden directories (.cache, .git and the like) are not descended into.
func DiscoverShards(root string) ([]string, error) {
	var shards []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if shardName.MatchString(d.Name()) {
			shards = append(shards, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", root)
	}
	sort.Strings(shards)
	return shards, nil
}

// DiscoverByRoot lists the shards of every dataset root, keyed by root. Each root must
// hold at least one shard, and no shard may be reachable from two roots, so every scan
// is scored exactly once.
func DiscoverByRoot(roots []string) (map[string][]string, error) {
	byRoot := make(map[string][]string, len(roots))
	owner := make(map[string]string)
	for _, root := range roots {
		shards, err := DiscoverShards(root)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, errors.Errorf("no shards under %s", root)
		}
		for _, shard := range shards {
			abs, err := filepath.Abs(shard)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve %s", shard)
			}
			if prev, ok := owner[abs]; ok {
				return nil, errors.Errorf("shard %s is under both %s and %s", shard, prev, root)
			}
			owner[abs] = root
		}
		byRoot[root] = shards
	}
	return byRoot, nil
}
