// Command mldhtd runs a Mainline BitTorrent DHT node: a Kademlia routing
// table, a KRPC engine answering ping/find_node/get_peers/announce_peer,
// and a peer store tracking swarms announced to this node.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "mldhtd",
		Short: "Mainline BitTorrent DHT node",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(inspectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
