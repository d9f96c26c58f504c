package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bioneo/stakeledger/cmd/initializer/pkg"
	"github.com/bioneo/stakeledger/internal/tokenomics"
	"github.com/bioneo/stakeledger/utils"
)

func main() {
	out := flag.String("out", utils.GenesisPath(), "genesis document to write")
	start := flag.Uint64("start", uint64(time.Now().Unix()), "unix time the sale and vesting schedules start at")
	whitelist := flag.String("whitelist", "", "comma separated whitelist beneficiaries (exactly 3)")
	rounding := flag.String("rounding", "", "vesting rounding: per_period or pro_rata")
	flag.Parse()

	plan := tokenomics.Default()
	genesis := pkg.DefaultGenesis(plan, *start)
	if *whitelist != "" {
		genesis.Whitelist.Beneficiaries = strings.Split(*whitelist, ",")
	}
	if *rounding != "" {
		genesis.Rounding = *rounding
	}
	if err := genesis.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid genesis: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("distribution:", plan)
	for _, p := range genesis.Staking {
		for _, pool := range p.Pools {
			fmt.Printf("%s tier %d: %s base units/s, lock %s\n",
				p.Variant, pool.Tier, humanize.Comma(int64(pool.RewardRate)),
				time.Duration(pool.Duration)*time.Second)
		}
	}
	fmt.Printf("ido: %s shares, %s tokens\n",
		humanize.Comma(int64(genesis.IDO.TotalShares)), tokenomics.Tokens(genesis.IDO.TokenAmount))

	if err := pkg.WriteConfig(*out, genesis); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing genesis: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Genesis written to %s\n", *out)
}
