// Package capacity estimates whether an input polygon count fits in memory.
//
// The estimate is empirical and intentionally conservative: dissolve passes
// have been observed to cost roughly 45 MB per 1000 polygons at peak, and the
// budget is capped at min(32 GB, 70% of total RAM). The advisory is surfaced
// once before processing begins; nothing mid-run reacts to it.
package capacity

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	mbPerThousandPolys = 45.0
	safeFraction       = 0.70
	maxBudgetGB        = 32.0

	// nearCapacityFraction is the input-to-capacity ratio above which the
	// advisory recommends freeing memory.
	nearCapacityFraction = 0.8
)

// Advisory is the pre-run memory report.
type Advisory struct {
	TotalGB       float64
	AvailableGB   float64
	MaxPolygons   int
	InputPolygons int
	NearCapacity  bool
}

// Check builds an advisory for the given input polygon count using the
// host's /proc/meminfo. Errors mean the advisory is unavailable, not that the
// run should stop.
func Check(inputPolygons int) (*Advisory, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return nil, eris.Wrap(err, "capacity: open meminfo")
	}
	defer func() { _ = f.Close() }()
	return check(f, inputPolygons)
}

func check(meminfo io.Reader, inputPolygons int) (*Advisory, error) {
	totalKB, availKB, err := parseMeminfo(meminfo)
	if err != nil {
		return nil, err
	}

	totalGB := float64(totalKB) / (1024 * 1024)
	availGB := float64(availKB) / (1024 * 1024)

	budgetGB := totalGB * safeFraction
	if budgetGB > maxBudgetGB {
		budgetGB = maxBudgetGB
	}
	maxPolys := int(budgetGB * 1024 / mbPerThousandPolys * 1000)

	return &Advisory{
		TotalGB:       totalGB,
		AvailableGB:   availGB,
		MaxPolygons:   maxPolys,
		InputPolygons: inputPolygons,
		NearCapacity:  maxPolys > 0 && float64(inputPolygons) >= nearCapacityFraction*float64(maxPolys),
	}, nil
}

func parseMeminfo(r io.Reader) (totalKB, availKB int64, err error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			availKB, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, eris.Wrap(err, "capacity: scan meminfo")
	}
	if totalKB == 0 {
		return 0, 0, eris.New("capacity: MemTotal not found")
	}
	return totalKB, availKB, nil
}
