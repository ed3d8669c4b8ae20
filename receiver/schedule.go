package receiver

import (
	"github.com/jrwynneiii/gnssacq/config"
	"github.com/jrwynneiii/gnssacq/navstore"
	"github.com/jrwynneiii/gnssacq/replica"
)

// searchList orders the configured PRNs for searching: satellites with a
// healthy ephemeris first, then the ones nothing is known about. Satellites
// flagged unhealthy are left out.
func searchList(rc config.ReceiverConf, nav *navstore.Nav) []replica.Signal {
	var known, unknown []replica.Signal
	seen := make(map[int]bool)
	for _, prn := range rc.PRNs {
		if seen[prn] {
			continue
		}
		seen[prn] = true

		sig := replica.Signal{System: rc.System[0], PRN: prn, Code: rc.Signal}
		eph, ok := nav.Ephemeris.Snapshot(sig.ID())
		switch {
		case !ok:
			unknown = append(unknown, sig)
		case eph.Healthy():
			known = append(known, sig)
		}
	}
	return append(known, unknown...)
}
