// Copyright (c) 2025 The coinview developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command coinviewctl is a small read-only inspector for a coinview
// chain-state database. It opens a leveldb-backed store directly (no
// cache layer, so nothing it prints can be dirty) and reports summary
// statistics, mirroring the kind of info dcrd's getinfo/dumpblockdb
// tooling surfaces for its own chain state.
package main

import (
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"

	"github.com/sidechainlabs/coinview/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}

	if err := initLogRotator(cfg.LogFile); err != nil {
		fatalf("%v", err)
	}
	setLogLevel(cfg.Debug)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		fatalf("failed to open %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	if cfg.ScId != "" {
		if err := printSidechainDetail(db, cfg.ScId); err != nil {
			fatalf("%v", err)
		}
		return
	}

	printSummary(db)
}

func printSummary(db *store.LevelDBStore) {
	stats, ok := db.GetStats()
	if !ok {
		fatalf("store returned no stats")
	}

	fmt.Printf("best block:   %s\n", stats.BestBlockHash)
	fmt.Printf("best anchor:  %s\n", stats.BestAnchorRoot)
	fmt.Printf("coin count:   %d\n", stats.CoinCount)
	fmt.Printf("sidechains:   %d\n", stats.SidechainCount)

	ids := db.GetScIds()
	if len(ids) == 0 {
		return
	}
	fmt.Println("\nsidechain ids:")
	for _, id := range ids {
		sc, ok := db.GetSidechain(id)
		if !ok {
			continue
		}
		fmt.Printf("  %s  state=%d  balance=%d\n", id, sc.CurrentState, sc.Balance)
	}
}

func printSidechainDetail(db *store.LevelDBStore, scIdHex string) error {
	id, err := chainhash.NewHashFromStr(scIdHex)
	if err != nil {
		return fmt.Errorf("invalid --scid: %w", err)
	}

	sc, ok := db.GetSidechain(*id)
	if !ok {
		return fmt.Errorf("no sidechain with id %s", scIdHex)
	}

	fmt.Printf("sidechain:              %s\n", id)
	fmt.Printf("state:                  %d\n", sc.CurrentState)
	fmt.Printf("creation block:         %s at height %d\n", sc.CreationBlockHash, sc.CreationBlockHeight)
	fmt.Printf("creation tx:            %s\n", sc.CreationTxHash)
	fmt.Printf("balance:                %d\n", sc.Balance)
	fmt.Printf("withdrawal epoch len:   %d\n", sc.Creation.WithdrawalEpochLength)
	fmt.Printf("last top cert hash:     %s\n", sc.LastTopQualityCertHash)
	fmt.Printf("last top cert epoch:    %d\n", sc.LastTopQualityCertReferencedEpoch)
	fmt.Printf("last top cert quality:  %d\n", sc.LastTopQualityCertQuality)

	if len(sc.ImmatureAmounts) == 0 {
		return nil
	}
	fmt.Println("\nimmature amounts:")
	for _, height := range sc.IterateImmatureAmounts() {
		fmt.Printf("  height %d: %d\n", height, sc.ImmatureAmounts[height])
	}
	return nil
}
