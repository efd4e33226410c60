// Package csvio reads and writes the member CSV exchange format.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"roster-cli/internal/model"
)

// Header is the exact, order-sensitive first row of every member CSV.
var Header = []string{"Name", "Job Title", "Rank", "Image URL", "Bio", "Order"}

const utf8BOM = "\ufeff"

// Row is one parsed data row. Order is 0 when the column was empty or malformed.
type Row struct {
	Name      string
	JobTitle  string
	Seniority string
	ImageURL  string
	Bio       string
	Order     int
}

// Member converts the row into an unsaved member of collection.
func (r Row) Member(collection string) model.Member {
	return model.Member{
		Collection: collection,
		Rank:       r.Order,
		Name:       r.Name,
		JobTitle:   r.JobTitle,
		Seniority:  r.Seniority,
		ImageURL:   r.ImageURL,
		Bio:        r.Bio,
		Image:      model.DefaultImagePlacement(),
	}
}

type ParseResult struct {
	Rows    []Row
	Skipped int
}

// Export writes members in the given order, header first.
func Export(w io.Writer, members []model.Member) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range members {
		rec := []string{m.Name, m.JobTitle, m.Seniority, m.ImageURL, m.Bio, strconv.Itoa(m.Rank)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Parse reads a whole CSV stream. A header that does not match Header is a
// ValidationError; a stream that cannot be read is an ImportError. Rows with fewer
// than len(Header) fields are skipped and counted.
func Parse(r io.Reader) (ParseResult, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, model.ValidationError{Field: "header", Reason: "file is empty"}
	}
	if err != nil {
		return ParseResult{}, model.ImportError{Err: err}
	}
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], utf8BOM)
	}
	if !headerMatches(head) {
		return ParseResult{}, model.ValidationError{
			Field:  "header",
			Reason: "expected " + strings.Join(Header, ","),
		}
	}

	var res ParseResult
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, model.ImportError{Err: err}
		}
		if len(rec) < len(Header) {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, Row{
			Name:      strings.TrimSpace(rec[0]),
			JobTitle:  strings.TrimSpace(rec[1]),
			Seniority: strings.TrimSpace(rec[2]),
			ImageURL:  strings.TrimSpace(rec[3]),
			Bio:       rec[4],
			Order:     parseOrder(rec[5]),
		})
	}
	return res, nil
}

func headerMatches(head []string) bool {
	if len(head) != len(Header) {
		return false
	}
	for i := range Header {
		if strings.TrimSpace(head[i]) != Header[i] {
			return false
		}
	}
	return true
}

func parseOrder(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return model.RankUnset
	}
	return n
}
