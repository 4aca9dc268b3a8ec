package model

import (
	"errors"
	"fmt"
	"math"
	"net/netip"
)

// IPRecord is one optimized endpoint measured by an external speed test.
//
// Only records that pass Validate are handed to the synthesis engine.
type IPRecord struct {
	Address           string
	Port              int
	PacketLossPercent float64
	LatencyMs         float64
	Bandwidth         string

	// Raw telemetry columns, kept for display only.
	Sent     string
	Received string
}

const MaxLatencyMs = 9999.99

var (
	ErrInvalidAddress = errors.New("address is not a dotted-quad IPv4")
	ErrInvalidPort    = errors.New("port out of range [1,65535]")
	ErrInvalidLoss    = errors.New("packet loss out of range [0,100]")
	ErrInvalidLatency = errors.New("latency out of range [0,9999.99]")
)

func (r IPRecord) Validate() error {
	if !IsIPv4Literal(r.Address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, r.Address)
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, r.Port)
	}
	if math.IsNaN(r.PacketLossPercent) || r.PacketLossPercent < 0 || r.PacketLossPercent > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidLoss, r.PacketLossPercent)
	}
	if math.IsNaN(r.LatencyMs) || r.LatencyMs < 0 || r.LatencyMs > MaxLatencyMs {
		return fmt.Errorf("%w: %v", ErrInvalidLatency, r.LatencyMs)
	}
	return nil
}

// Endpoint returns "address:port".
func (r IPRecord) Endpoint() string {
	return fmt.Sprintf("%s:%d", r.Address, r.Port)
}

// IsIPv4Literal reports whether s is a plain dotted-quad IPv4 address
// (no zone, no IPv4-mapped IPv6 form).
func IsIPv4Literal(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Quality classifies the record for the admin listing. It plays no part in
// generation.
func (r IPRecord) Quality() Quality {
	switch {
	case r.PacketLossPercent == 0 && r.LatencyMs < 100:
		return QualityExcellent
	case r.PacketLossPercent <= 5 && r.LatencyMs < 200:
		return QualityGood
	case r.PacketLossPercent <= 20 && r.LatencyMs < 400:
		return QualityFair
	default:
		return QualityPoor
	}
}

func (r IPRecord) CSSClass() string {
	switch r.Quality() {
	case QualityExcellent:
		return "text-success"
	case QualityGood:
		return "text-primary"
	case QualityFair:
		return "text-warning"
	default:
		return "text-danger"
	}
}
