// Package parser turns delimiter-separated vocabulary text (TSV, CSV or
// pasted plain text) into import entries.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukas-hzb/verve/internal/deck"
)

const (
	// DefaultCardSeparator splits the input into one card per line.
	DefaultCardSeparator = "\n"
	// DefaultFieldSeparator splits a card into front and back (TSV).
	DefaultFieldSeparator = "\t"
)

// ErrNoCards is returned when the input contains no usable front/back pairs.
var ErrNoCards = errors.New("no valid vocabulary cards found")

// Unescape resolves the escape sequences \n, \t and \r in a user-supplied
// separator, so a "\t" typed into a form means a real tab.
func Unescape(sep string) string {
	sep = strings.ReplaceAll(sep, `\n`, "\n")
	sep = strings.ReplaceAll(sep, `\t`, "\t")
	sep = strings.ReplaceAll(sep, `\r`, "\r")
	return sep
}

// Parse splits content into cards using cardSep and each card into front and
// back using fieldSep. Blank rows and rows with fewer than two fields are
// skipped; columns past the second are ignored. Separators are unescaped
// first; empty separators fall back to the defaults.
func Parse(content, cardSep, fieldSep string) ([]deck.Entry, error) {
	cardSep = Unescape(cardSep)
	fieldSep = Unescape(fieldSep)
	if cardSep == "" {
		cardSep = DefaultCardSeparator
	}
	if fieldSep == "" {
		fieldSep = DefaultFieldSeparator
	}

	var rows []string
	if cardSep == "\n" {
		// Universal newline handling for the common one-card-per-line case.
		rows = strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	} else {
		rows = strings.Split(content, cardSep)
	}

	var entries []deck.Entry
	for _, row := range rows {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}

		parts := strings.Split(row, fieldSep)
		if len(parts) < 2 {
			continue
		}

		front := strings.TrimSpace(parts[0])
		back := strings.TrimSpace(parts[1])
		if front == "" || back == "" {
			continue
		}
		entries = append(entries, deck.Entry{Front: front, Back: back})
	}

	if len(entries) == 0 {
		return nil, ErrNoCards
	}
	return entries, nil
}

// ParseReader reads everything from r and parses it.
func ParseReader(r io.Reader, cardSep, fieldSep string) ([]deck.Entry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), cardSep, fieldSep)
}

// ParseFile parses a card file from disk. The field separator, unless given,
// is inferred from the extension: comma for .csv, tab for everything else.
// Only .csv, .tsv and .txt files are accepted.
func ParseFile(path, cardSep, fieldSep string) ([]deck.Entry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv", ".txt":
	default:
		return nil, fmt.Errorf("unsupported file type %q: only CSV, TSV and TXT files are supported", ext)
	}

	if fieldSep == "" && ext == ".csv" {
		fieldSep = ","
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseReader(file, cardSep, fieldSep)
}
