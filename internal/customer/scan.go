// Package customer implements the guest ordering flow: table scan, menu,
// cart and order submission.
package customer

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidScan = errors.New("invalid table code")

// TableRef identifies the table a guest is sitting at.
type TableRef struct {
	BranchID int64
	TableID  int64
}

func (r TableRef) Valid() bool {
	return r.BranchID > 0 && r.TableID > 0
}

// ParseScan reads a table code. Two payloads are accepted and mean the same
// thing:
//
//	http://host/scan?table=5&branch=2
//	table:5;branch:2
func ParseScan(text string) (TableRef, error) {
	text = strings.TrimSpace(text)
	switch {
	case strings.Contains(text, "table=") && strings.Contains(text, "branch="):
		u, err := url.Parse(text)
		if err != nil {
			return TableRef{}, fmt.Errorf("%w: %v", ErrInvalidScan, err)
		}
		return RefFromQuery(u.Query())
	case strings.Contains(text, "table:"):
		return parsePairs(text)
	}
	return TableRef{}, ErrInvalidScan
}

// RefFromQuery reads the table and branch query parameters of a scan URL.
func RefFromQuery(q url.Values) (TableRef, error) {
	table, err := parseID(q.Get("table"))
	if err != nil {
		return TableRef{}, err
	}
	branch, err := parseID(q.Get("branch"))
	if err != nil {
		return TableRef{}, err
	}
	return TableRef{BranchID: branch, TableID: table}, nil
}

func parsePairs(text string) (TableRef, error) {
	var (
		ref                 TableRef
		gotTable, gotBranch bool
		err                 error
	)
	for _, part := range strings.Split(text, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "table":
			if ref.TableID, err = parseID(value); err != nil {
				return TableRef{}, err
			}
			gotTable = true
		case "branch":
			if ref.BranchID, err = parseID(value); err != nil {
				return TableRef{}, err
			}
			gotBranch = true
		}
	}
	if !gotTable || !gotBranch {
		return TableRef{}, ErrInvalidScan
	}
	return ref, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive id", ErrInvalidScan, s)
	}
	return id, nil
}

// ScanURL builds the URL printed on a table's QR code.
func ScanURL(base string, ref TableRef) string {
	q := url.Values{}
	q.Set("table", strconv.FormatInt(ref.TableID, 10))
	q.Set("branch", strconv.FormatInt(ref.BranchID, 10))
	return strings.TrimRight(base, "/") + "/scan?" + q.Encode()
}

// ScanText builds the compact text payload for ref.
func ScanText(ref TableRef) string {
	return fmt.Sprintf("table:%d;branch:%d", ref.TableID, ref.BranchID)
}
