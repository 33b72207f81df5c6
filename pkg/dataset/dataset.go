// Package dataset describes the numbered datasets of the collection and
// parses user selections of them.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"docmirror/pkg/config"
)

// Dataset is one independently paginated sub-collection
type Dataset struct {
	Number  int
	Dir     string
	listURL string
}

// New builds a dataset from a list URL template containing {page} and
// optionally {dataset}.
func New(number int, dir, listURL string) Dataset {
	return Dataset{
		Number:  number,
		Dir:     dir,
		listURL: strings.ReplaceAll(listURL, "{dataset}", strconv.Itoa(number)),
	}
}

// PageURL returns the listing URL of page
func (d Dataset) PageURL(page int) string {
	return strings.ReplaceAll(d.listURL, "{page}", strconv.Itoa(page))
}

// String names the dataset in logs and prompts
func (d Dataset) String() string {
	return fmt.Sprintf("dataset %d", d.Number)
}

// Catalog returns the datasets named by numbers, laid out per cfg
func Catalog(cfg *config.Config, numbers []int) []Dataset {
	out := make([]Dataset, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, New(n, cfg.DatasetDir(n), cfg.Source.ListURL))
	}
	return out
}

// ParseSelection parses "3", "1,3,5", "2-6" or combinations like "1-3,7".
// Ranges may be written backwards. Numbers outside known are dropped, and
// "all" or an empty string selects everything known. The result is sorted
// and free of duplicates.
func ParseSelection(sel string, known []int) ([]int, error) {
	knownSet := make(map[int]bool, len(known))
	for _, n := range known {
		knownSet[n] = true
	}

	sel = strings.TrimSpace(strings.ToLower(sel))
	if sel == "" || sel == "all" {
		return sortedUnique(known), nil
	}

	picked := make(map[int]bool)
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		for n := lo; n <= hi; n++ {
			if knownSet[n] {
				picked[n] = true
			}
		}
	}

	out := make([]int, 0, len(picked))
	for n := range picked {
		out = append(out, n)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("selection %q matches no known dataset", sel)
	}
	return out, nil
}

func parseRange(part string) (int, int, error) {
	if a, b, ok := strings.Cut(part, "-"); ok {
		lo, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", part)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", part)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo, hi, nil
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dataset number %q", part)
	}
	return n, n, nil
}

func sortedUnique(nums []int) []int {
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
