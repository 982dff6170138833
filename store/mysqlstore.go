package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net"

	_ "github.com/go-sql-driver/mysql"

	"github.com/chainflux/mldht/dht"
)

// MySQLStore persists swarms in a MySQL table, for deployments that
// already operate a MySQL instance and would rather not manage a
// directory of flat files. Schema:
//
//	CREATE TABLE peers (
//	    info_hash BINARY(20) NOT NULL,
//	    ip        VARBINARY(4) NOT NULL,
//	    port      SMALLINT UNSIGNED NOT NULL,
//	    seeder    BOOLEAN NOT NULL,
//	    PRIMARY KEY (info_hash, ip, port)
//	);
type MySQLStore struct {
	db       *sql.DB
	maxPeers int
}

// NewMySQLStore opens a connection pool against dsn (a standard
// go-sql-driver/mysql data source name) and verifies connectivity.
// maxPeers caps each swarm's size; 0 takes DefaultMaxPeersPerTorrent.
func NewMySQLStore(dsn string, maxPeers int) (*MySQLStore, error) {
	if maxPeers <= 0 {
		maxPeers = DefaultMaxPeersPerTorrent
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}
	return &MySQLStore{db: db, maxPeers: maxPeers}, nil
}

// Close releases the underlying connection pool.
func (ms *MySQLStore) Close() error {
	return ms.db.Close()
}

func (ms *MySQLStore) TorrentExists(hash dht.ID) bool {
	var exists bool
	row := ms.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM peers WHERE info_hash = ?)`, hash.Bytes())
	if err := row.Scan(&exists); err != nil {
		return false
	}
	return exists
}

func (ms *MySQLStore) GetPeers(hash dht.ID) ([]dht.Peer, error) {
	rows, err := ms.db.Query(`SELECT ip, port, seeder FROM peers WHERE info_hash = ?`, hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store: query peers: %w", err)
	}
	defer rows.Close()

	var peers []dht.Peer
	for rows.Next() {
		var ipBytes []byte
		var port uint16
		var seeder bool
		if err := rows.Scan(&ipBytes, &port, &seeder); err != nil {
			return nil, fmt.Errorf("store: scan peer row: %w", err)
		}
		peers = append(peers, dht.Peer{IP: net.IP(ipBytes), Port: port, Seeder: seeder})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate peer rows: %w", err)
	}
	if peers == nil {
		return nil, ErrTorrentNotTracked
	}
	return peers, nil
}

// Count returns the number of distinct info-hashes with at least one row
// in the peers table.
func (ms *MySQLStore) Count() (int, error) {
	var n int
	row := ms.db.QueryRow(`SELECT COUNT(DISTINCT info_hash) FROM peers`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count torrents: %w", err)
	}
	return n, nil
}

func (ms *MySQLStore) AddPeer(hash dht.ID, peer dht.Peer) (bool, error) {
	var count int
	row := ms.db.QueryRow(`SELECT COUNT(*) FROM peers WHERE info_hash = ?`, hash.Bytes())
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("store: count peers: %w", err)
	}
	if count >= ms.maxPeers {
		return false, nil
	}

	ip4 := peer.IP.To4()
	if ip4 == nil {
		return false, errors.New("store: peer address is not IPv4")
	}

	res, err := ms.db.Exec(
		`INSERT IGNORE INTO peers (info_hash, ip, port, seeder) VALUES (?, ?, ?, ?)`,
		hash.Bytes(), []byte(ip4), peer.Port, peer.Seeder,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert peer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}
