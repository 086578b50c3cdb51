package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/nishimvki/coverdiscover/internal/domain"
)

// Track ids are 22 base62 characters
var trackIDRegex = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// LoadAlphabet reads the character pool for extended queries from the first
// column of a CSV with a header row. Cells may hold several characters;
// whitespace and repeats are dropped.
func LoadAlphabet(path string) ([]rune, error) {
	records, err := readRows(path)
	if err != nil {
		return nil, err
	}

	seen := make(map[rune]bool)
	var alphabet []rune
	for _, rec := range records {
		for _, r := range strings.ToLower(strings.TrimSpace(rec[0])) {
			if unicode.IsSpace(r) || unicode.IsControl(r) || seen[r] {
				continue
			}
			seen[r] = true
			alphabet = append(alphabet, r)
		}
	}
	return alphabet, nil
}

// LoadIDs reads track ids to exclude from sampling. Rows that do not look
// like a track id are skipped.
func LoadIDs(path string) (domain.IDSet, error) {
	records, err := readRows(path)
	if err != nil {
		return nil, err
	}

	ids := domain.NewIDSet()
	for _, rec := range records {
		// Validation (Fail-Soft)
		id := strings.TrimSpace(rec[0])
		if !trackIDRegex.MatchString(id) {
			continue
		}
		ids.Add(id)
	}
	return ids, nil
}

// readRows returns every non-empty data row after the header
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Wrap in BOM stripper
	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1

	var rows [][]string
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		// the header is the first row even when it fails to parse
		line++
		if err != nil || line == 1 {
			continue
		}
		if len(record) == 0 {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
