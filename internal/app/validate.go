package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	payloadschema "northpointtriallaw.com/opsdash/internal/schema"
)

type validateResult struct {
	Scanned int
	Valid   int
	Invalid int
	ByTag   map[string]int
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "testdata/articles", "Directory containing .json article files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	root := strings.TrimSpace(*dir)
	files, err := collectJSONFiles(root, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	result := validateFiles(files, os.Stderr)
	fmt.Printf(
		"validate scanned=%d valid=%d invalid=%d dir=%s recursive=%t\n",
		result.Scanned,
		result.Valid,
		result.Invalid,
		root,
		*recursive,
	)

	if result.Scanned == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", root)
		return 1
	}
	if result.Invalid > 0 {
		return 1
	}
	return 0
}

// validateFiles checks every file against the article schema and reports each
// failure on errOut.
func validateFiles(files []string, errOut io.Writer) validateResult {
	result := validateResult{ByTag: map[string]int{}}
	for _, path := range files {
		result.Scanned++

		raw, err := os.ReadFile(path)
		if err != nil {
			result.Invalid++
			fmt.Fprintf(errOut, "INVALID %s: read failed: %v\n", path, err)
			continue
		}
		if !json.Valid(raw) {
			result.Invalid++
			fmt.Fprintf(errOut, "INVALID %s: malformed JSON\n", path)
			continue
		}

		article, err := payloadschema.ValidateArticlePayload(json.RawMessage(raw))
		if err != nil {
			result.Invalid++
			fmt.Fprintf(errOut, "INVALID %s: %v\n", path, err)
			continue
		}
		result.Valid++
		result.ByTag[article.Tag]++
	}
	return result
}

// collectJSONFiles lists the .json files under root in lexical order. Dot files
// and dot directories are skipped.
func collectJSONFiles(root string, recursive bool) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("directory path is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if path == root {
				return nil
			}
			if hidden || !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
