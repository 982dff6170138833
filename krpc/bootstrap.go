package krpc

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/chainflux/mldht/dht"
)

// Bootstrap sends a find_node query for selfID to each host:port pair,
// seeding the routing table on first start when it has no peers of its
// own to ask. Resolution failures are logged and skipped; a DHT node is
// expected to run fine as long as at least one bootstrap host answers.
func (e *Engine) Bootstrap(hosts []string, ports []int) {
	if len(hosts) != len(ports) {
		logrus.WithFields(logrus.Fields{
			"function": "Bootstrap",
		}).Warn("mismatched bootstrap host/port lists")
		return
	}

	for i, host := range hosts {
		addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, ports[i]))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Bootstrap",
				"host":     host,
				"error":    err,
			}).Warn("could not resolve bootstrap node")
			continue
		}

		node := dht.NewNode(dht.ID{}, addr)
		target := e.selfID
		if err := e.SendQuery(MethodFindNode, node, func(q *Query) {
			q.Target = target
		}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Bootstrap",
				"host":     host,
				"error":    err,
			}).Warn("bootstrap query failed")
		}
	}
}
