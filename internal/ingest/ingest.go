package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/index/memory"
)

// Loader fills the in-memory index from local .txt files, for running the
// pipeline without an externally populated vector index. Files may carry
// "--- page N ---" markers; files named *.captions.txt are indexed as
// caption-kind candidates, one per page block.
type Loader struct {
	chunker  *chunker.SentenceChunker
	embedder embedding.Embedder
	index    *memory.Index
}

func NewLoader(ch *chunker.SentenceChunker, emb embedding.Embedder, idx *memory.Index) *Loader {
	return &Loader{chunker: ch, embedder: emb, index: idx}
}

var pageMarkerRe = regexp.MustCompile(`(?m)^---\s*page\s+(\d+)\s*---\s*$`)

type pageBlock struct {
	page int
	text string
}

// Load reads the given paths (globs allowed), chunks and embeds them, and
// initializes the index. Returns the number of indexed candidates.
func (l *Loader) Load(paths []string) (int, error) {
	var candidates []domain.RetrievedCandidate
	var texts []string

	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return 0, err
			}
			kind := domain.KindText
			if strings.HasSuffix(strings.ToLower(m), ".captions.txt") {
				kind = domain.KindCaption
			}
			docID := hashString(m)
			filename := filepath.Base(m)
			for _, block := range splitPages(string(data)) {
				page := block.page
				for i, chunk := range l.chunkBlock(block.text, kind) {
					cand := domain.RetrievedCandidate{
						ID:   docID + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(i),
						Text: domain.NormalizeSpace(chunk),
						Metadata: domain.Metadata{
							Filename: filename,
							Page:     &page,
							Kind:     kind,
						},
					}
					candidates = append(candidates, cand)
					texts = append(texts, cand.Text)
				}
			}
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("no .txt documents found")
	}

	if err := l.embedder.Prepare(texts); err != nil {
		return 0, err
	}
	if err := l.index.Init(l.embedder.Dimension()); err != nil {
		return 0, err
	}
	vectors := make([][]float64, len(candidates))
	for i := range candidates {
		vec, err := l.embedder.Embed(candidates[i].Text)
		if err != nil {
			return 0, err
		}
		vectors[i] = vec
	}
	if err := l.index.Add(candidates, vectors); err != nil {
		return 0, err
	}
	return len(candidates), nil
}

// chunkBlock keeps captions whole; text blocks are sentence-chunked.
func (l *Loader) chunkBlock(text string, kind domain.Kind) []string {
	if kind == domain.KindCaption {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	return l.chunker.Chunk(text)
}

// splitPages divides content on page markers. Content before the first
// marker (or without any) is page 1.
func splitPages(content string) []pageBlock {
	locs := pageMarkerRe.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return []pageBlock{{page: 1, text: content}}
	}
	var blocks []pageBlock
	if head := content[:locs[0][0]]; strings.TrimSpace(head) != "" {
		blocks = append(blocks, pageBlock{page: 1, text: head})
	}
	for i, loc := range locs {
		page, _ := strconv.Atoi(content[loc[2]:loc[3]])
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, pageBlock{page: page, text: content[loc[1]:end]})
	}
	return blocks
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
