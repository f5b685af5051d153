// Command exctl is the admin CLI: it talks to the exchange's admin gRPC
// service and prints depth and stats.
//
//	exctl -addr localhost:9200 depth 0
//	exctl -addr localhost:9200 stats
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"matchbox/api/adminpb"
	"matchbox/api/adminserver"
)

func main() {
	addr := flag.String("addr", "localhost:9200", "admin service address")
	levels := flag.Int("levels", 10, "depth levels per side")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: exctl [flags] depth <ticker> | stats")
		os.Exit(2)
	}
	if err := run(*addr, *levels, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr string, levels int, args []string) error {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(adminserver.Codec{})),
	)
	if err != nil {
		return fmt.Errorf("exctl: connect %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch args[0] {
	case "depth":
		if len(args) < 2 {
			return fmt.Errorf("exctl: depth needs a ticker id")
		}
		ticker, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("exctl: bad ticker %q", args[1])
		}
		return depth(ctx, conn, uint32(ticker), uint32(levels))
	case "stats":
		return stats(ctx, conn)
	}
	return fmt.Errorf("exctl: unknown command %q", args[0])
}

func depth(ctx context.Context, conn *grpc.ClientConn, ticker, levels uint32) error {
	req := &adminpb.DepthRequest{TickerID: ticker, Levels: levels}
	resp := &adminpb.DepthResponse{}
	if err := conn.Invoke(ctx, adminserver.MethodGetDepth, req, resp); err != nil {
		return fmt.Errorf("exctl: GetDepth: %w", err)
	}
	fmt.Printf("ticker %d  last_seq %d\n", resp.TickerID, resp.LastSeq)
	fmt.Printf("%12s %10s %6s | %-12s %10s %6s\n", "BID", "QTY", "ORD", "ASK", "QTY", "ORD")
	n := len(resp.Bids)
	if len(resp.Asks) > n {
		n = len(resp.Asks)
	}
	for i := 0; i < n; i++ {
		bid, ask := "", ""
		bq, aq, bo, ao := "", "", "", ""
		if i < len(resp.Bids) {
			b := resp.Bids[i]
			bid = strconv.FormatInt(b.Price, 10)
			bq = strconv.FormatInt(b.Qty, 10)
			bo = strconv.FormatUint(uint64(b.Orders), 10)
		}
		if i < len(resp.Asks) {
			a := resp.Asks[i]
			ask = strconv.FormatInt(a.Price, 10)
			aq = strconv.FormatInt(a.Qty, 10)
			ao = strconv.FormatUint(uint64(a.Orders), 10)
		}
		fmt.Printf("%12s %10s %6s | %-12s %10s %6s\n", bid, bq, bo, ask, aq, ao)
	}
	return nil
}

func stats(ctx context.Context, conn *grpc.ClientConn) error {
	req := &adminpb.StatsRequest{}
	resp := &adminpb.StatsResponse{}
	if err := conn.Invoke(ctx, adminserver.MethodGetStats, req, resp); err != nil {
		return fmt.Errorf("exctl: GetStats: %w", err)
	}
	fmt.Printf("up since  %s\n", time.Unix(resp.StartUnix, 0).Format(time.RFC3339))
	fmt.Printf("last_seq  %d\n", resp.LastSeq)
	for t, n := range resp.OpenOrders {
		fmt.Printf("ticker %d  open orders %d\n", t, n)
	}
	return nil
}
