// Package corpus loads training conversations for the chatbot.
//
// A corpus file is YAML with a list of categories and a list of
// conversations, each conversation being the ordered utterances of one
// exchange:
//
//	categories:
//	- greetings
//	conversations:
//	- - Hello
//	  - Hi
//
// Paths may name a single file or a directory of *.yml/*.yaml files. The
// reserved path "builtin:english" selects the corpus compiled into the
// binary.
package corpus

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Builtin names the embedded English corpus.
const Builtin = "builtin:english"

//go:embed data/english/*.yml
var builtinFiles embed.FS

// ErrEmpty is returned when a corpus contains no usable conversation.
var ErrEmpty = errors.New("corpus has no conversations")

// Corpus is one loaded corpus file.
type Corpus struct {
	// Name is the file name without extension.
	Name          string     `yaml:"-"`
	Categories    []string   `yaml:"categories"`
	Conversations [][]string `yaml:"conversations"`
}

// Category returns the first category, falling back to the corpus name.
func (c *Corpus) Category() string {
	if len(c.Categories) > 0 && c.Categories[0] != "" {
		return c.Categories[0]
	}
	return c.Name
}

// Parse decodes one corpus document. Conversations with fewer than one
// non-blank utterance are dropped; utterances are trimmed.
func Parse(name string, data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", name, err)
	}
	c.Name = name

	kept := c.Conversations[:0]
	for _, conv := range c.Conversations {
		var lines []string
		for _, line := range conv {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			kept = append(kept, lines)
		}
	}
	c.Conversations = kept

	if len(c.Conversations) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", name, ErrEmpty)
	}
	return &c, nil
}

// Load reads every corpus named by paths, in order. Directories are read
// in lexical file order.
func Load(paths ...string) ([]*Corpus, error) {
	var out []*Corpus
	for _, p := range paths {
		var (
			loaded []*Corpus
			err    error
		)
		if p == Builtin {
			loaded, err = loadFS(builtinFiles, "data/english")
		} else {
			loaded, err = loadPath(p)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func loadPath(p string) ([]*Corpus, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading corpus: %w", err)
		}
		c, err := Parse(baseName(filepath.Base(p)), data)
		if err != nil {
			return nil, err
		}
		return []*Corpus{c}, nil
	}
	return loadFS(os.DirFS(p), ".")
}

func loadFS(fsys fs.FS, dir string) ([]*Corpus, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("listing corpus directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := path.Ext(e.Name()); ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*Corpus
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading corpus %s: %w", name, err)
		}
		c, err := Parse(baseName(name), data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func baseName(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}
