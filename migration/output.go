package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/theimaginaryfoundation/hangouts-import/migration/fileutils"
)

const (
	IndexFileName   = "index.jsonl"
	RecordsFileName = "records.json"
)

// WriteOptions controls how WriteArchive lays out its output.
type WriteOptions struct {
	// OverwriteExisting controls whether existing output files should be overwritten.
	// If false and a file already exists, WriteArchive returns an error.
	OverwriteExisting bool

	// Pretty controls whether each conversation file is indented for readability.
	Pretty bool

	// SelfName marks base records sent by this display name as is_from_me.
	SelfName string

	// DirMode is used when creating the output directory (defaults to 0o755).
	DirMode fs.FileMode
}

// WriteStats contains basic stats from a write.
type WriteStats struct {
	ConversationsWritten int
	RecordsWritten       int
	BytesWritten         int64
}

// WriteArchive writes one JSON file per successful conversation into outputDir, plus index.jsonl listing them and
// records.json holding the deduplicated base records of every message.
func WriteArchive(ctx context.Context, outputDir string, res *Result, opts WriteOptions) (WriteStats, error) {
	if outputDir == "" {
		return WriteStats{}, errors.New("WriteArchive: outputDir is empty")
	}
	if res == nil {
		return WriteStats{}, errors.New("WriteArchive: result is nil")
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	if err := os.MkdirAll(outputDir, opts.DirMode); err != nil {
		return WriteStats{}, fmt.Errorf("WriteArchive: mkdir outputDir: %w", err)
	}

	var (
		stats   WriteStats
		index   []ConversationIndexRecord
		records = NewRecordIndex()
		seen    = make(map[string]int)
	)
	for _, c := range res.Conversations {
		select {
		case <-ctx.Done():
			return WriteStats{}, ctx.Err()
		default:
		}
		if c.Failed() {
			continue
		}

		filename := conversationFileName(c.ConversationID, seen)
		outPath := filepath.Join(outputDir, filename)
		if err := checkWritable(outPath, opts.OverwriteExisting); err != nil {
			return WriteStats{}, err
		}

		n, err := fileutils.WriteJSONFileAtomic(outPath, c, opts.Pretty)
		if err != nil {
			return WriteStats{}, fmt.Errorf("WriteArchive: write conversation (id=%q): %w", c.ConversationID, err)
		}
		stats.ConversationsWritten++
		stats.BytesWritten += n

		index = append(index, BuildConversationIndexRecord(c, filename))
		records.AddMessages(c.Messages, opts.SelfName)
	}

	indexPath := filepath.Join(outputDir, IndexFileName)
	if err := checkWritable(indexPath, opts.OverwriteExisting); err != nil {
		return WriteStats{}, err
	}
	n, err := fileutils.WriteJSONLinesAtomic(indexPath, index)
	if err != nil {
		return WriteStats{}, fmt.Errorf("WriteArchive: write index: %w", err)
	}
	stats.BytesWritten += n

	recordsPath := filepath.Join(outputDir, RecordsFileName)
	if err := checkWritable(recordsPath, opts.OverwriteExisting); err != nil {
		return WriteStats{}, err
	}
	n, err = fileutils.WriteJSONFileAtomic(recordsPath, records.Records(), opts.Pretty)
	if err != nil {
		return WriteStats{}, fmt.Errorf("WriteArchive: write records: %w", err)
	}
	stats.BytesWritten += n
	stats.RecordsWritten = records.Len()

	return stats, nil
}

// conversationFileName derives a unique file name for id; seen tracks names already handed out.
func conversationFileName(id string, seen map[string]int) string {
	base := sanitizeFilenameComponent(id)
	if base == "" {
		base = "conversation"
	}

	seenCount := seen[base]
	seen[base] = seenCount + 1

	filename := base
	if seenCount > 0 {
		filename = fmt.Sprintf("%s-%d", base, seenCount+1)
	}
	return filename + ".json"
}

func checkWritable(path string, overwrite bool) error {
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteArchive: output file already exists: %s", path)
	}
	return nil
}

func sanitizeFilenameComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	out = strings.Trim(out, "._-")
	return strings.TrimSpace(out)
}
