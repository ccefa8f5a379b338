package review

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/geo"
)

// Opener shows a link to the reviewer.
type Opener interface {
	Open(url string) error
}

// Browser opens links in the default browser.
type Browser struct{}

// Open starts the platform's URL handler without waiting for it.
func (Browser) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// Summary counts the answers of a verification run.
type Summary struct {
	Reviewed int
	Missing  int
	Unseen   int
}

// Verifier asks, for every candidate, whether an airport can be seen in
// the imagery around it. Anything but "y" marks the candidate as unable
// to be seen and saves it to the reviewed list straight away.
type Verifier struct {
	In       io.Reader
	Out      io.Writer
	Opener   Opener
	Reviewed *Reviewed
	Logger   *zap.Logger
}

func value(c Candidate, name, fallback string) string {
	if v, ok := c.Row.Lookup(name); ok {
		return v
	}
	return fallback
}

// Run walks the candidates in order. It stops early, keeping what was
// saved, when the input ends.
func (v *Verifier) Run(candidates []Candidate) (Summary, error) {
	var s Summary
	in := bufio.NewScanner(v.In)
	for i, c := range candidates {
		fmt.Fprintf(v.Out, "\nProcessing airport %d of %d\n", i+1, len(candidates))
		fmt.Fprintf(v.Out, "Name: %s\n", value(c, "name", "Unknown"))
		fmt.Fprintf(v.Out, "IATA Code: %s\n", value(c, "iata_code", "N/A"))
		fmt.Fprintf(v.Out, "ICAO Code: %s\n", value(c, "ident", "N/A"))
		fmt.Fprintf(v.Out, "Location: (%s, %s)\n", geo.FormatCoord(c.Point.Lat()), geo.FormatCoord(c.Point.Lon()))
		link := c.EditorLink()
		fmt.Fprintf(v.Out, "OSM Editor Link: %s\n", link)

		if v.Opener != nil {
			if err := v.Opener.Open(link); err != nil {
				v.Logger.Warn("Failed to open editor link", zap.String("url", link), zap.Error(err))
			}
		}

		fmt.Fprint(v.Out, "Is there a missing airport here? [y/N]: ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return s, errors.Wrap(err, "failed to read answer")
			}
			fmt.Fprintln(v.Out)
			return s, nil
		}
		s.Reviewed++

		if strings.ToLower(strings.TrimSpace(in.Text())) == "y" {
			fmt.Fprintln(v.Out, "Marked as missing airport.")
			s.Missing++
			continue
		}
		fmt.Fprintln(v.Out, "Marked as unable to be seen in imagery.")
		if err := v.Reviewed.Add(c); err != nil {
			return s, err
		}
		s.Unseen++
	}
	fmt.Fprintln(v.Out, "\nVerification complete.")
	fmt.Fprintf(v.Out, "Unable to see airports saved to '%s'.\n", v.Reviewed.Path)
	return s, nil
}
