package search

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM makes spreadsheet tools detect UTF-8 in exported CSV.
const utf8BOM = "\ufeff"

// WriteCSV writes rows as a link,text CSV with a UTF-8 BOM.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"link", "text"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Link, r.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLinks writes one link per line.
func WriteLinks(w io.Writer, links []string) error {
	for _, l := range links {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
