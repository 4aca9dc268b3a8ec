// Package ipcsv ingests IP telemetry exported by speed-test tools.
//
// The parser is tolerant: it accepts several column layouts, skips a header
// row, comments and blank lines, and reports every rejected line instead of
// failing the whole file.
package ipcsv

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"

	"github.com/John-Robertt/subforge/internal/model"
)

const DefaultPort = 443

const Header = "ip,port,sent,received,loss,latency,bandwidth"

type LineError struct {
	Line   int    `json:"line"` // 1-based
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

type Result struct {
	Records  []model.IPRecord
	Rejected []LineError
}

var errColumns = errors.New("unsupported column count")

// Parse reads records in input order. Supported layouts (comma, tab or
// whitespace separated):
//
//	ip
//	ip:port
//	ip,port[,loss[,latency[,bandwidth]]]
//	ip,sent,received,loss,latency,bandwidth       (speed-test export, port 443)
//	ip,port,sent,received,loss,latency,bandwidth
//
// Duplicate ip:port pairs keep the first occurrence.
func Parse(text string) Result {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var res Result
	seen := make(map[string]struct{}, len(lines))
	headerChecked := false

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitFields(line)

		if !headerChecked {
			headerChecked = true
			if looksLikeHeader(fields[0]) {
				continue
			}
		}

		rec, err := parseFields(fields)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			res.Rejected = append(res.Rejected, LineError{Line: i + 1, Raw: line, Reason: err.Error()})
			continue
		}

		key := rec.Endpoint()
		if _, dup := seen[key]; dup {
			res.Rejected = append(res.Rejected, LineError{Line: i + 1, Raw: line, Reason: "duplicate endpoint " + key})
			continue
		}
		seen[key] = struct{}{}
		res.Records = append(res.Records, rec)
	}
	return res
}

func splitFields(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, ","):
		parts = strings.Split(line, ",")
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	default:
		parts = strings.Fields(line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// looksLikeHeader reports whether the first column of the first data line is
// a column title ("ip", "IP 地址", ...) rather than an address.
func looksLikeHeader(first string) bool {
	if strings.ContainsAny(first, ".:") {
		return false
	}
	return strings.IndexFunc(first, unicode.IsLetter) >= 0
}

func parseFields(f []string) (model.IPRecord, error) {
	addr, port, err := splitAddress(f[0])
	if err != nil {
		return model.IPRecord{}, err
	}
	rec := model.IPRecord{Address: addr, Port: port}

	switch len(f) {
	case 1:
		return rec, nil
	case 2, 3, 4, 5:
		if rec.Port, err = parsePort(f[1]); err != nil {
			return rec, err
		}
		if len(f) > 2 {
			if rec.PacketLossPercent, err = parseLoss(f[2]); err != nil {
				return rec, err
			}
		}
		if len(f) > 3 {
			if rec.LatencyMs, err = parseLatency(f[3]); err != nil {
				return rec, err
			}
		}
		if len(f) > 4 {
			rec.Bandwidth = f[4]
		}
		return rec, nil
	case 6:
		rec.Sent, rec.Received = f[1], f[2]
		if rec.PacketLossPercent, err = parseLoss(f[3]); err != nil {
			return rec, err
		}
		if rec.LatencyMs, err = parseLatency(f[4]); err != nil {
			return rec, err
		}
		rec.Bandwidth = f[5]
		return rec, nil
	case 7:
		if rec.Port, err = parsePort(f[1]); err != nil {
			return rec, err
		}
		rec.Sent, rec.Received = f[2], f[3]
		if rec.PacketLossPercent, err = parseLoss(f[4]); err != nil {
			return rec, err
		}
		if rec.LatencyMs, err = parseLatency(f[5]); err != nil {
			return rec, err
		}
		rec.Bandwidth = f[6]
		return rec, nil
	default:
		return rec, fmt.Errorf("%w: %d", errColumns, len(f))
	}
}

// splitAddress accepts "ip" or "ip:port".
func splitAddress(s string) (string, int, error) {
	if strings.Count(s, ":") == 1 {
		host, p, err := net.SplitHostPort(s)
		if err != nil {
			return "", 0, err
		}
		port, err := parsePort(p)
		return host, port, err
	}
	return s, DefaultPort, nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return DefaultPort, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return n, nil
}

func parseLoss(s string) (float64, error) {
	return parseDecimal(strings.TrimSuffix(s, "%"), "packet loss")
}

func parseLatency(s string) (float64, error) {
	s = strings.TrimSuffix(strings.ToLower(s), "ms")
	return parseDecimal(s, "latency")
}

func parseDecimal(s, what string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return v, nil
}

// Format renders records as the canonical 7-column CSV with a header row.
func Format(records []model.IPRecord) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(strings.Join([]string{
			r.Address,
			strconv.Itoa(r.Port),
			clean(r.Sent),
			clean(r.Received),
			strconv.FormatFloat(r.PacketLossPercent, 'f', -1, 64),
			strconv.FormatFloat(r.LatencyMs, 'f', -1, 64),
			clean(r.Bandwidth),
		}, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func clean(s string) string {
	return strings.NewReplacer(",", " ", "\n", " ", "\r", " ").Replace(s)
}
