// Package kb loads and searches the operator knowledge base: standard
// operating procedures and protection notes kept as plain text files.
package kb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Document is one knowledge-base entry. The header block of the source file
// supplies the identity fields; everything after the first blank line is the
// body.
type Document struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Section  string `json:"section,omitempty"`
	URL      string `json:"url,omitempty"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// LoadDocuments walks dir for .md and .txt files and parses each into a
// Document. Files without the required ID and TITLE header keys are skipped
// with a warning rather than failing the whole load.
func LoadDocuments(dir string, logger *zap.Logger) ([]Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		doc, err := parseDocument(path)
		if err != nil {
			logger.Warn("skipping knowledge base file", zap.String("path", path), zap.Error(err))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk knowledge base %q: %w", dir, err)
	}
	return docs, nil
}

// parseDocument reads a KEY: value header block terminated by the first
// blank line, then the body. ID and TITLE are required.
func parseDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	doc := Document{Path: path}
	var body strings.Builder
	inHeader := true

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if inHeader {
			if strings.TrimSpace(line) == "" {
				inHeader = false
				continue
			}
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				// Header ended without a blank line; treat as body.
				inHeader = false
				body.WriteString(line)
				body.WriteByte('\n')
				continue
			}
			value = strings.TrimSpace(value)
			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "ID":
				doc.SourceID = value
			case "TITLE":
				doc.Title = value
			case "SECTION":
				doc.Section = value
			case "URL":
				doc.URL = value
			}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return Document{}, err
	}

	if doc.SourceID == "" || doc.Title == "" {
		return Document{}, fmt.Errorf("missing required ID/TITLE header in %s", path)
	}
	doc.Content = strings.TrimSpace(body.String())
	return doc, nil
}
