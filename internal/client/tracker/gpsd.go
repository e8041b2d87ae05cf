package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// GPSDProvider reads position fixes from a gpsd daemon over its JSON socket
// protocol: connect, enable watching, then take the first TPV report that
// carries a 2D fix or better.
type GPSDProvider struct {
	addr   string
	dialer net.Dialer
}

// NewGPSDProvider targets a gpsd instance, usually "127.0.0.1:2947".
func NewGPSDProvider(addr string) *GPSDProvider {
	return &GPSDProvider{addr: addr, dialer: net.Dialer{Timeout: 5 * time.Second}}
}

// tpv is the subset of a gpsd TPV report the tracker cares about. epx/epy are
// the per-axis position error estimates in meters.
type tpv struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Epx   float64 `json:"epx"`
	Epy   float64 `json:"epy"`
}

func (p *GPSDProvider) CurrentSample(ctx context.Context) (models.LocationSample, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return models.LocationSample{}, fmt.Errorf("%w: gpsd at %s: %v", ErrUnavailable, p.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return models.LocationSample{}, fmt.Errorf("%w: enabling watch: %v", ErrUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, `"TPV"`) {
			continue
		}
		var report tpv
		if err := json.Unmarshal([]byte(line), &report); err != nil {
			continue
		}
		// Mode 2 is a 2D fix, 3 is 3D; anything lower has no position.
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}
		return models.LocationSample{
			Lat:            report.Lat,
			Lon:            report.Lon,
			AccuracyMeters: max(report.Epx, report.Epy),
			SampledAt:      time.Now(),
		}, nil
	}
	if err := scanner.Err(); err != nil {
		return models.LocationSample{}, fmt.Errorf("%w: reading gpsd stream: %v", ErrUnavailable, err)
	}
	return models.LocationSample{}, fmt.Errorf("%w: gpsd stream ended without a fix", ErrUnavailable)
}
