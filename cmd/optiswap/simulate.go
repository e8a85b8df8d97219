package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/optiswap/optiswap/agent"
	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/ledger"
	"github.com/optiswap/optiswap/log"
	"github.com/optiswap/optiswap/metrics"
)

// simulation terms
const (
	simStart         = uint64(1_700_000_000)
	simPrice         = 1000
	simCompletionTip = 10
	simDisputeTip    = 30
	simPenalty       = 20
	simFunds         = 10_000
)

var (
	simKey = []byte{
		0x2b, 0x7e, 0x15, 0x16, 0x28, 0xae, 0xd2, 0xa6,
		0xab, 0xf7, 0x15, 0x88, 0x09, 0xcf, 0x4f, 0x3c,
	}
	simIV = [circuit.AESBlockSize]byte{0: 0xf0, 15: 0x01}
)

type simOptions struct {
	blocks      uint64
	tamper      int64
	silent      string
	skipFinal   bool
	metricsAddr string
}

func cmdSimulate(a *app) *cobra.Command {
	var opts simOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a trade and, if needed, a dispute",
		Long: `Simulate a complete trade between generated parties on an in-memory ledger.
The vendor may tamper with one gate of its trace, in which case the buyer
finds the fault and bisects it down in a dispute.

Examples:
  $ optiswap simulate --blocks 8
  $ optiswap simulate --blocks 8 --tamper 9
  $ optiswap simulate --blocks 8 --tamper 9 --silent vendor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.simulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&opts.blocks, "blocks", 4, "number of 16-byte plaintext blocks")
	f.Int64Var(&opts.tamper, "tamper", -1, "gate whose traced value the vendor corrupts (-1 for none)")
	f.StringVar(&opts.silent, "silent", "", "side that stops answering during the dispute: buyer or vendor")
	f.BoolVar(&opts.skipFinal, "skip-final", false, "withhold both final-gate submissions")
	f.StringVar(&opts.metricsAddr, "metrics.addr", "", "serve Prometheus metrics on this address while the simulation runs")
	return cmd
}

func parseSide(s string) (dispute.Side, error) {
	switch s {
	case "":
		return dispute.SideNone, nil
	case "buyer":
		return dispute.SideBuyer, nil
	case "vendor":
		return dispute.SideVendor, nil
	default:
		return dispute.SideNone, fmt.Errorf("invalid side %q", s)
	}
}

// simPlaintext returns a deterministic good of the given size.
func simPlaintext(blocks uint64) []byte {
	p := make([]byte, blocks*circuit.AESBlockSize)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

func (a *app) simulate(ctx context.Context, w io.Writer, opts simOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	silent, err := parseSide(opts.silent)
	if err != nil {
		return err
	}
	if opts.blocks == 0 || opts.blocks > a.cfg.MaxNumBlocks {
		return fmt.Errorf("blocks must be in [1, %d]", a.cfg.MaxNumBlocks)
	}
	numGates := circuit.NumGates(opts.blocks)
	var tamper agent.Tamper
	if opts.tamper >= 0 {
		if uint64(opts.tamper) >= numGates {
			return fmt.Errorf("tamper gate %d out of range [0, %d)", opts.tamper, numGates)
		}
		tamper = agent.TamperGate(uint64(opts.tamper))
	}

	ledgerOpts := []ledger.Option{
		ledger.WithMaxNumBlocks(a.cfg.MaxNumBlocks),
		ledger.WithLogger(log.Default().Module("ledger")),
	}
	addr := opts.metricsAddr
	if addr == "" && a.cfg.Metrics {
		addr = a.cfg.MetricsAddr
	}
	if addr != "" {
		stop, err := serveMetrics(addr, a.log)
		if err != nil {
			return err
		}
		defer stop()
		ledgerOpts = append(ledgerOpts, ledger.WithMetrics(metrics.NewProtocolMetrics()))
	}

	clock := ledger.NewManualClock(simStart)
	l := ledger.New(clock, ledgerOpts...)
	party := func(name string, funds uint64) (*agent.Party, error) {
		p, err := agent.GenerateParty(name, l)
		if err != nil {
			return nil, err
		}
		if funds > 0 {
			l.Credit(p.Address, uint256.NewInt(funds))
		}
		return p, nil
	}
	parties := make(map[string]*agent.Party)
	for _, acct := range []struct {
		name  string
		funds uint64
	}{
		{"vendor", 0},
		{"buyer", simFunds},
		{"buyer-sponsor", simFunds},
		{"vendor-sponsor", simFunds},
		{"sponsor", 0},
	} {
		if parties[acct.name], err = party(acct.name, acct.funds); err != nil {
			return err
		}
	}

	plaintext := simPlaintext(opts.blocks)
	vendor, err := agent.NewVendor(parties["vendor"], simKey, simIV, plaintext, tamper)
	if err != nil {
		return err
	}
	buyer := agent.NewBuyer(parties["buyer"], circuit.Digest(plaintext), []byte("optiswap simulation"))

	increment := uint64(a.cfg.TimeoutIncrement / time.Second)
	params := vendor.Params(buyer.Address, buyer.Commitment(), agent.Terms{
		Price:            uint256.NewInt(simPrice),
		CompletionTip:    uint256.NewInt(simCompletionTip),
		DisputeTip:       uint256.NewInt(simDisputeTip),
		Penalty:          uint256.NewInt(simPenalty),
		TimeoutIncrement: increment,
		Sponsor:          parties["sponsor"].Address,
	})
	rcpt, err := vendor.Send(ctx, types.Address{}, ledger.OpCreateExchange, nil, params)
	if err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	ex := rcpt.Created
	a.log.Info("exchange created", "address", ex, "blocks", opts.blocks, "gates", numGates)

	bond := uint256.NewInt(simDisputeTip + simPenalty)
	steps := []struct {
		name string
		send func() error
	}{
		{"pay", func() error {
			_, err := buyer.Pay(ctx, ex, uint256.NewInt(simPrice+simCompletionTip))
			return err
		}},
		{"reveal key", func() error {
			_, err := vendor.RevealKey(ctx, ex)
			return err
		}},
		{"sponsor buyer", func() error {
			_, err := parties["buyer-sponsor"].Send(ctx, ex, ledger.OpSponsorBuyer, bond, nil)
			return err
		}},
		{"sponsor vendor", func() error {
			_, err := parties["vendor-sponsor"].Send(ctx, ex, ledger.OpSponsorVendor, bond, nil)
			return err
		}},
	}
	for _, s := range steps {
		clock.Advance(1)
		if err := s.send(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	fault, err := buyer.Inspect(ex, vendor.Records(), vendor.Trace())
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	fmt.Fprintf(w, "exchange:  %s\n", ex.Hex())
	fmt.Fprintf(w, "gates:     %d\n", numGates)
	fmt.Fprintf(w, "fault:     %t\n", fault)

	if !fault {
		if silent == dispute.SideBuyer {
			snap, _ := l.Exchange(ex)
			clock.Set(snap.Deadline + 1)
			_, err = vendor.Send(ctx, ex, ledger.OpExchangeTimeout, nil, nil)
		} else {
			clock.Advance(1)
			_, err = buyer.Accept(ctx, ex)
		}
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	} else {
		fmt.Fprintf(w, "target:    %d\n", buyer.Target())
		clock.Advance(1)
		rcpt, err := buyer.StartDispute(ctx, ex)
		if err != nil {
			return fmt.Errorf("start dispute: %w", err)
		}
		final, err := agent.RunDispute(ctx, &agent.Game{
			Ledger:    l,
			Clock:     clock,
			Vendor:    vendor,
			Buyer:     buyer,
			Dispute:   rcpt.Created,
			Silent:    silent,
			SkipFinal: opts.skipFinal,
		})
		if err != nil {
			return fmt.Errorf("dispute: %w", err)
		}
		fmt.Fprintf(w, "dispute:   %s\n", final.Address.Hex())
		fmt.Fprintf(w, "outcome:   %s\n", final.Outcome)
		fmt.Fprintf(w, "reason:    %s\n", final.Reason)
		fmt.Fprintf(w, "rounds:    %d\n", final.Rounds)
		fmt.Fprintf(w, "index:     %d\n", final.Index)
		fmt.Fprintf(w, "standings: vendor=%s buyer=%s\n", final.VendorStanding, final.BuyerStanding)
	}

	snap, ok := l.Exchange(ex)
	if !ok {
		return fmt.Errorf("exchange %s vanished", ex)
	}
	fmt.Fprintf(w, "state:     %s (%s)\n", snap.State, snap.EndReason)
	for _, name := range []string{"vendor", "buyer", "buyer-sponsor", "vendor-sponsor", "sponsor"} {
		fmt.Fprintf(w, "balance:   %-15s %s\n", name, l.Balance(parties[name].Address).Dec())
	}
	return nil
}

// serveMetrics exposes the Prometheus handler on addr until stop is called.
func serveMetrics(addr string, lg *log.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server failed", "err", err)
		}
	}()
	lg.Info("metrics server started", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
