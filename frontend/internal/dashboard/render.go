package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/vpportal/vpportal/shared/domain"
)

// Color is the chip color of a status.
type Color string

const (
	ColorSuccess Color = "success"
	ColorError   Color = "error"
	ColorWarning Color = "warning"
)

var ansi = map[Color]string{
	ColorSuccess: "\x1b[32m",
	ColorError:   "\x1b[31m",
	ColorWarning: "\x1b[33m",
}

const (
	ansiReset   = "\x1b[0m"
	ansiDefault = "\x1b[39m"
)

var columns = []string{"Request ID", "Subject", "Description", "Status", "Created At"}

const statusColumn = 3

const (
	emptyPlaceholder   = "No requests found"
	loadingPlaceholder = "Loading..."
	maxCellRunes       = 40
	createdAtLayout    = "2006-01-02"
)

func StatusColor(status domain.RequestStatus) Color {
	switch status {
	case domain.StatusApproved:
		return ColorSuccess
	case domain.StatusRejected:
		return ColorError
	default:
		return ColorWarning
	}
}

// Render writes the request table. colored enables ANSI status colors.
func (d *Dashboard) Render(w io.Writer, colored bool) error {
	if !d.Loaded() {
		_, err := fmt.Fprintln(w, loadingPlaceholder)
		return err
	}
	if user, ok := d.User(); ok {
		if _, err := fmt.Fprintf(w, "%s <%s>\n\n", user.Name, user.Email); err != nil {
			return err
		}
	}
	return RenderTable(w, d.Requests(), colored)
}

func RenderTable(w io.Writer, requests []domain.Request, colored bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header(colored), "\t"))

	if len(requests) == 0 {
		fmt.Fprintln(tw, placeholderRow())
	}
	for _, r := range requests {
		fmt.Fprintln(tw, strings.Join([]string{
			r.RequestId,
			cell(r.Subject),
			cell(r.Description),
			statusCell(r.Status, colored),
			r.CreatedAt.Local().Format(createdAtLayout),
		}, "\t"))
	}
	return tw.Flush()
}

// header wraps the Status title in an escape pair of the same byte width as
// the colored cells below it, tabwriter counts bytes not glyphs.
func header(colored bool) []string {
	out := make([]string, len(columns))
	copy(out, columns)
	if colored {
		out[statusColumn] = ansiDefault + out[statusColumn] + ansiReset
	}
	return out
}

// placeholderRow puts the message in the first cell and pads the rest so the
// row spans every column.
func placeholderRow() string {
	return emptyPlaceholder + strings.Repeat("\t", len(columns)-1)
}

// statusCell adds the same number of escape bytes for every color.
func statusCell(status domain.RequestStatus, colored bool) string {
	if !colored {
		return status
	}
	return ansi[StatusColor(status)] + status + ansiReset
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxCellRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxCellRunes-1]) + "…"
}
