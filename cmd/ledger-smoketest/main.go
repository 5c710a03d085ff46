package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/logscan"
	"github.com/stake-plus/bobu-forum/src/forum/pager"
	"github.com/stake-plus/bobu-forum/src/forum/service"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

var (
	rpcFlag      = flag.String("rpc", envOr("RPC_URL", "http://127.0.0.1:8545"), "JSON-RPC endpoint")
	hubFlag      = flag.String("hub", os.Getenv("HUB_ADDRESS"), "Hub contract address")
	legacyFlag   = flag.String("legacy", os.Getenv("PROPOSAL_CONTRACT_ADDRESS"), "Legacy proposal contract address (optional)")
	statesFlag   = flag.String("states", "active,open,draft,closed", "Comma-separated states to list")
	pageFlag     = flag.Int("page", 1, "Page to print")
	sizeFlag     = flag.Int("size", pager.DefaultPageSize, "Page size")
	blocksFlag   = flag.Uint64("blocks", 10, "Legacy window size in blocks")
	timeoutFlag  = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	commentsFlag = flag.Bool("comments", false, "Print the first comment batch of each listed proposal")
	scanAllFlag  = flag.Bool("scan-all", false, "Scan the last -lookback blocks of the legacy contract instead of one window")
	lookbackFlag = flag.Uint64("lookback", logscan.DefaultLookback, "Blocks scanned back from the latest block with -scan-all")
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseStates(raw string) []types.ProposalState {
	var out []types.ProposalState
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		s, err := types.ParseState(part)
		if err != nil {
			log.Fatalf("invalid state: %v", err)
		}
		out = append(out, s)
	}
	return out
}

func optionalAddress(raw, name string) types.Address {
	if raw == "" {
		return types.Address{}
	}
	a, err := types.ParseAddress(raw)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return a
}

func main() {
	flag.Parse()
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	client, err := ledger.Dial(ctx, *rpcFlag, ledger.Options{
		Hub:              optionalAddress(*hubFlag, "hub"),
		ProposalContract: optionalAddress(*legacyFlag, "legacy"),
	})
	if err != nil {
		log.Fatal(err)
	}
	svc := service.New(service.Options{Reader: client, Logs: client, PageSize: *sizeFlag})

	counts, err := svc.Counts(ctx)
	if err != nil {
		log.Fatalf("counts ❌ %v", err)
	}
	fmt.Println("counts ✅")
	for _, s := range pager.CanonicalOrder {
		fmt.Printf("  %-7s %d\n", s, counts[s.String()])
	}

	sel := pager.NewSelection(parseStates(*statesFlag)...)
	sel.Page = *pageFlag
	start := time.Now()
	res, err := svc.Browse(ctx, sel)
	if err != nil {
		log.Fatalf("browse ❌ %v", err)
	}
	fmt.Printf("browse ✅ (%.1fs) page %d/%d, %d of %d proposals\n",
		time.Since(start).Seconds(), res.Window.Page, res.Window.TotalPages, len(res.Rows), res.Window.Total)
	for _, row := range res.Rows {
		fmt.Printf("  [%-6s] %s  %-40.40q by %s, %d votes, %s\n",
			row.Status, row.ShortID, row.Title, row.ShortAuthor, row.Votes, row.TimeAgo)
		if !*commentsFlag {
			continue
		}
		page, err := svc.Proposal(ctx, row.Address)
		if err != nil {
			fmt.Printf("    comments ❌ %v\n", err)
			continue
		}
		for _, c := range page.Comments.Rows {
			fmt.Printf("    - %s (%s): %.60q\n", c.ShortAuthor, c.Sentiment, c.Content)
		}
	}

	if *legacyFlag == "" {
		return
	}
	var legacy types.LegacyPage
	if *scanAllFlag {
		legacy, err = svc.LegacyRecent(ctx, *lookbackFlag)
	} else {
		legacy, err = svc.Legacy(ctx, nil, *blocksFlag)
	}
	if err != nil {
		log.Fatalf("legacy ❌ %v", err)
	}
	fmt.Printf("legacy ✅ blocks %d-%d, %d submissions\n", legacy.FromBlock, legacy.ToBlock, len(legacy.Items))
	if legacy.Partial {
		fmt.Println("  ⚠️  provider stopped the scan early; some blocks were not read")
	}
	for _, item := range legacy.Items {
		fmt.Printf("  #%d %s: %.60q\n", item.BlockNumber, item.Author.Hex(), item.Text)
	}
}
